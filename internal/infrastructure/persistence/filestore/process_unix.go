//go:build unix

package filestore

import (
	"errors"
	"syscall"
)

// processAlive 信号 0 只做存在性检查；EPERM 说明进程存在但属于其他用户
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
