package models

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentWaiting    CommentStatus = "W"
	CommentApproved   CommentStatus = "A"
	CommentUnapproved CommentStatus = "UA"
)

// Valid reports whether s is one of the known statuses.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentWaiting, CommentApproved, CommentUnapproved:
		return true
	}
	return false
}

// Label returns the human-readable name of s.
func (s CommentStatus) Label() string {
	switch s {
	case CommentWaiting:
		return "Waiting"
	case CommentApproved:
		return "Approved"
	case CommentUnapproved:
		return "Un Approved"
	}
	return string(s)
}

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderPaid     OrderStatus = "P"
	OrderUnpaid   OrderStatus = "U"
	OrderCanceled OrderStatus = "C"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPaid, OrderUnpaid, OrderCanceled:
		return true
	}
	return false
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderPaid:
		return "Paid"
	case OrderUnpaid:
		return "Unpaid"
	case OrderCanceled:
		return "Canceled"
	}
	return string(s)
}
