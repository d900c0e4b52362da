package pipeline

// Item is a value tagged with the position it had in the input.
// Seq is assigned once by the producer, starting at 0, and never changes afterwards.
type Item[T any] struct {
	Seq   int
	Value T
}

// message is the unit carried by both channels: either an Item or the done sentinel.
// err is only set on the results side in collect mode.
type message[T any] struct {
	item Item[T]
	err  error
	done bool
}

func itemMessage[T any](seq int, v T) message[T] {
	return message[T]{item: Item[T]{Seq: seq, Value: v}}
}

func failedMessage[T any](seq int, err error) message[T] {
	return message[T]{item: Item[T]{Seq: seq}, err: err}
}

func doneMessage[T any]() message[T] {
	return message[T]{done: true}
}
