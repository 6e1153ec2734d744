package domain

// Order is a completed purchase as stored under orders/{email}.
type Order struct {
	PaymentID  string     `json:"paymentId"`
	OrderedOn  string     `json:"orderedOn"`
	OrderItems []CartLine `json:"orderItems"`
}

func (o Order) Total() float64 {
	var total float64
	for _, item := range o.OrderItems {
		total += item.LineTotal()
	}
	return total
}

// CheckoutSummary is handed to the payment step.
type CheckoutSummary struct {
	UserID          string     `json:"userId"`
	Email           string     `json:"email"`
	Lines           []CartLine `json:"lines"`
	ItemCount       int        `json:"itemCount"`
	RegularTotal    float64    `json:"regularTotal"`
	DiscountedTotal float64    `json:"discountedTotal"`
	Savings         float64    `json:"savings"`
}
