// Package sigchan 提供合并式信号 channel：只通知"发生过"，不携带数据。
// 缓冲满时丢弃新信号：对"尽快刷新一次"这类语义，合并掉的信号不是丢失。
package sigchan

// Chan 非阻塞信号 channel
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel。bufferSize 通常取 1：排队中的刺激合并为一次。
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发出信号。缓冲已满时直接返回，不阻塞调用方。
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 暴露内部 channel 供 select 消费
func (c *Chan) C() <-chan struct{} {
	return c.c
}
