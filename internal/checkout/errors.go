package checkout

import "errors"

var (
	ErrNoDrawer             = errors.New("no cash drawer bound to this terminal")
	ErrEmptyCart            = errors.New("cart is empty, nothing to charge")
	ErrLineNotFound         = errors.New("product is not in the cart")
	ErrStockExceeded        = errors.New("quantity would exceed available stock")
	ErrPaymentInProgress    = errors.New("cart is locked while payment is collected")
	ErrNoSale               = errors.New("no sale is awaiting payment")
	ErrInsufficientPayment  = errors.New("amount received is less than the total")
	ErrTransferNotConfirmed = errors.New("electronic transfer has not been confirmed")
	ErrInvalidCustomer      = errors.New("customer name is required")
)
