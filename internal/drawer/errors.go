package drawer

import "errors"

var (
	ErrInvalidAdminCredentials = errors.New("invalid admin credentials")
	ErrInvalidOpeningAmount    = errors.New("opening amount must be a non-negative number")
	ErrDrawerAlreadyOpen       = errors.New("a cash drawer is already open")
	ErrNoOpenDrawer            = errors.New("no cash drawer is open")
	ErrStateLoading            = errors.New("cash drawer state is still loading")
	ErrNotAuthorized           = errors.New("close has not been authorized")
	IllegalTransitionError     = errors.New("illegal transition of drawer state")
)
