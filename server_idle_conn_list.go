package httpcore

import (
	"net"
	"sync"
	"sync/atomic"
)

// idleConnList is the doubly-linked list of handlers currently in S4,
// keep-alive-wait: Shutdown walks it to close every handler parked
// there, and its count backs IdleHandlers. Kept as a typed
// pointer list rather than an unsafe.Pointer/uintptr version,
// since connHandler's identity is known at every call site here.
type idleConnList struct {
	mtx       sync.Mutex
	firstItem *idleConnListItem
	lastItem  *idleConnListItem
	count     atomic.Int32
}

type idleConnListItem struct {
	nextItem *idleConnListItem
	prevItem *idleConnListItem
	c        net.Conn
	connTime atomic.Int64
}

func (l *idleConnList) insertBack(item *idleConnListItem) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.lastItem == nil {
		l.firstItem = item
		l.lastItem = item
	} else {
		l.lastItem.nextItem = item
		item.prevItem = l.lastItem
		l.lastItem = item
	}
	l.count.Add(1)
}

func (l *idleConnList) remove(item *idleConnListItem) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.removeNoLock(item)
}

func (l *idleConnList) removeNoLock(item *idleConnListItem) {
	if item.prevItem != nil {
		item.prevItem.nextItem = item.nextItem
	} else {
		l.firstItem = item.nextItem
	}
	if item.nextItem != nil {
		item.nextItem.prevItem = item.prevItem
	} else {
		l.lastItem = item.prevItem
	}
	item.prevItem = nil
	item.nextItem = nil
	l.count.Add(-1)
}

// Len returns the number of handlers currently parked in S4,
// keep-alive-wait.
func (l *idleConnList) Len() int32 {
	return l.count.Load()
}

func (l *idleConnList) forEach(f func(item *idleConnListItem)) {
	var nextItem *idleConnListItem

	l.mtx.Lock()
	defer l.mtx.Unlock()

	for item := l.firstItem; item != nil; item = nextItem {
		nextItem = item.nextItem
		f(item)
	}
}
