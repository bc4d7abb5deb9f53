package domain

// MessageBus carries inbound events from channels to the router and knows
// which sink serves each channel.
type MessageBus interface {
	Publish(ev InboundEvent)
	Subscribe() <-chan InboundEvent
	RegisterSink(channelName string, sink Sink)
	Sink(channelName string) (Sink, bool)
	// MarkReady signals that a channel finished connecting.
	MarkReady(channelName string)
	Ready() <-chan string
	Close()
}
