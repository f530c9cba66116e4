package switchboard

import "time"

// Events are optional callbacks fired by the server. Each runs on the
// goroutine that raised it and must not block.
type Events struct {
	ServerStarted         func()
	ServerStopped         func()
	RequestReceived       func(c *Context)
	RequestDenied         func(c *Context)
	RequestorDisconnected func(c *Context)
	ExceptionEncountered  func(c *Context, err error)
	ResponseSent          func(c *Context, elapsed time.Duration)
}

func (e *Events) serverStarted() {
	if e != nil && e.ServerStarted != nil {
		e.ServerStarted()
	}
}

func (e *Events) serverStopped() {
	if e != nil && e.ServerStopped != nil {
		e.ServerStopped()
	}
}

func (e *Events) requestReceived(c *Context) {
	if e != nil && e.RequestReceived != nil {
		e.RequestReceived(c)
	}
}

func (e *Events) requestDenied(c *Context) {
	if e != nil && e.RequestDenied != nil {
		e.RequestDenied(c)
	}
}

func (e *Events) requestorDisconnected(c *Context) {
	if e != nil && e.RequestorDisconnected != nil {
		e.RequestorDisconnected(c)
	}
}

func (e *Events) exceptionEncountered(c *Context, err error) {
	if e != nil && e.ExceptionEncountered != nil {
		e.ExceptionEncountered(c, err)
	}
}

func (e *Events) responseSent(c *Context, elapsed time.Duration) {
	if e != nil && e.ResponseSent != nil {
		e.ResponseSent(c, elapsed)
	}
}
