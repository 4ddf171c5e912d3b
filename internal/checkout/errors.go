package checkout

import (
	"errors"

	"github.com/noah-isme/toko-checkout/internal/common"
)

var (
	// ErrEmptyCart is returned when a guarded transition sees no purchasable quantity.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrNoAddresses signals the caller to send the user to address management.
	ErrNoAddresses = errors.New("checkout: no saved addresses")
	// ErrNoAddress is returned when payment starts without a selected address.
	ErrNoAddress = errors.New("checkout: no address selected")
	// ErrUnknownAddress is returned when the selected id was not offered.
	ErrUnknownAddress = errors.New("checkout: address not offered")
	// ErrZeroTotal is returned when the amount to charge is not positive.
	ErrZeroTotal = errors.New("checkout: nothing to charge")
	// ErrIllegalTransition is returned when the operation is not allowed from the current state.
	ErrIllegalTransition = errors.New("checkout: transition not allowed")
	// ErrAmbiguousPayment marks a verification that failed after the gateway reported success.
	ErrAmbiguousPayment = errors.New("checkout: payment state ambiguous")
	// ErrSessionNotFound is returned by session stores for unknown or expired ids.
	ErrSessionNotFound = errors.New("checkout: session not found")
	// ErrMissingOrderID is returned when the intent collaborator omits the gateway order id.
	ErrMissingOrderID = errors.New("checkout: payment intent missing gateway order id")
)

// SupportMessage is shown whenever a payment may have been captured without confirmation.
const SupportMessage = "Your payment may have gone through. Please contact support before paying again."

func validation(code string, err error) *common.AppError {
	return common.Validation(code, err.Error(), err)
}

func illegal(from State, op string) *common.AppError {
	e := common.NewAppError(common.KindConflict, "ILLEGAL_TRANSITION", op+" is not allowed while checkout is "+string(from), ErrIllegalTransition)
	e.Details = map[string]string{"state": string(from), "operation": op}
	return e
}
