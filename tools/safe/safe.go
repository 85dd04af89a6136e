package safe

import (
	"DMCore/logger"
	errs "DMCore/tools/errs"
)

// SafeGo 启动一个带 recover 的协程，panic 不会拖垮整个进程
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] %+v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}

// SafeLoop 循环执行 f，panic 后继续下一轮，stop 关闭时退出。
// f 自己负责节流（sleep/ticker）。
func SafeLoop(stop <-chan struct{}, f func()) {
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("[SafeLoop] %+v", errs.ErrPanic(r))
					}
				}()
				f()
			}()
		}
	}()
}
