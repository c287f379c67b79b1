// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误；各包在此基础上 Wrap 出具体信息，调用方用 errors.Is 判断类别
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// New 等同标准库 errors.New，便于调用方只引入本包
func New(text string) error {
	return errors.New(text)
}

// Is 等同标准库 errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound err 链中是否包含 ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArg err 链中是否包含 ErrInvalidArg
func IsInvalidArg(err error) bool {
	return errors.Is(err, ErrInvalidArg)
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
