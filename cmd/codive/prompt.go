package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// console serializes output from the UI loop and background goroutines, and
// reads stdin on one goroutine so any step can wait for a line with a ctx.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	lines   chan string
	pending []string
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{out: out, lines: make(chan string)}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// writer locks the console for the duration of fn.
func (c *console) write(fn func(w io.Writer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.out)
}

// unread puts l back so the next line call returns it first.
func (c *console) unread(l string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append([]string{l}, c.pending...)
}

// line blocks for the next input line. ok is false on EOF or ctx end.
func (c *console) line(ctx context.Context) (string, bool) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		l := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return l, true
	}
	c.mu.Unlock()

	select {
	case l, ok := <-c.lines:
		return l, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *console) ask(ctx context.Context, label string) (string, bool) {
	c.printf("%s: ", label)
	return c.line(ctx)
}

func (c *console) confirm(ctx context.Context, label string) (bool, bool) {
	ans, ok := c.ask(ctx, label+" [y/N]")
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, true
	}
	return false, true
}
