package escrow

import "errors"

// Error kinds. Every *Error unwraps to exactly one of them, so callers can
// branch with errors.Is(err, ErrValidation) and friends.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrArithmetic    = errors.New("arithmetic error")
	ErrResource      = errors.New("resource error")
	ErrNotFound      = errors.New("not found")
)

// Error is a domain failure with a stable machine-readable code.
type Error struct {
	kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the kind sentinel the error belongs to.
func (e *Error) Kind() error { return e.kind }

func newError(kind error, code, msg string) *Error {
	return &Error{kind: kind, Code: code, Message: msg}
}

var (
	ErrTitleTooLong             = newError(ErrValidation, "title_too_long", "campaign title is too long (max 100 characters)")
	ErrDescriptionTooLong       = newError(ErrValidation, "description_too_long", "campaign description is too long (max 500 characters)")
	ErrInvalidTargetAmount      = newError(ErrValidation, "invalid_target_amount", "invalid target amount")
	ErrInvalidDuration          = newError(ErrValidation, "invalid_duration", "invalid campaign duration (1-365 days)")
	ErrInvalidContribution      = newError(ErrValidation, "invalid_contribution_amount", "invalid contribution amount")
	ErrExceedsTarget            = newError(ErrValidation, "exceeds_target", "contribution exceeds campaign target")
	ErrInvalidIdentity          = newError(ErrValidation, "invalid_identity", "actor identity is required")
	ErrCampaignExists           = newError(ErrState, "campaign_exists", "campaign with this title already exists for creator")
	ErrCampaignEnded            = newError(ErrState, "campaign_ended", "campaign has already ended")
	ErrCampaignAlreadyWithdrawn = newError(ErrState, "campaign_already_withdrawn", "campaign funds already withdrawn")
	ErrWithdrawalNotAllowed     = newError(ErrState, "withdrawal_conditions_not_met", "withdrawal conditions not met")
	ErrAlreadyWithdrawn         = newError(ErrState, "already_withdrawn", "funds already withdrawn")
	ErrCampaignStillActive      = newError(ErrState, "campaign_still_active", "campaign is still active")
	ErrCampaignWasSuccessful    = newError(ErrState, "campaign_was_successful", "campaign was successful")
	ErrNothingToRefund          = newError(ErrState, "nothing_to_refund", "no contribution to refund")
	ErrUnauthorizedWithdrawal   = newError(ErrAuthorization, "unauthorized_withdrawal", "unauthorized withdrawal")
	ErrIdentityNotVerified      = newError(ErrAuthorization, "identity_not_verified", "actor identity could not be verified")
	ErrAmountOverflow           = newError(ErrArithmetic, "amount_overflow", "amount overflow")
	ErrContributorsOverflow     = newError(ErrArithmetic, "contributors_overflow", "contributors count overflow")
	ErrAmountUnderflow          = newError(ErrArithmetic, "amount_underflow", "campaign total is below the refunded amount")
	ErrNothingToWithdraw        = newError(ErrResource, "nothing_to_withdraw", "no funds to withdraw")
	ErrTransferFailed           = newError(ErrResource, "transfer_failed", "custodial transfer failed")
	ErrCampaignNotFound         = newError(ErrNotFound, "campaign_not_found", "campaign not found")
	ErrContributionNotFound     = newError(ErrNotFound, "contribution_not_found", "contribution not found")
)
