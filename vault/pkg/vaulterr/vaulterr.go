// Package vaulterr defines the tagged failures returned by vault operations.
package vaulterr

import (
	"errors"
	"fmt"
)

// Code is the stable numeric identifier of a vault failure.
type Code uint32

const (
	CodeBalanceError            Code = 10
	CodeReserveNotFound         Code = 100
	CodeReserveAlreadyExists    Code = 101
	CodeInvalidAmount           Code = 102
	CodeInsufficientAccruedFees Code = 103
	CodeInvalidFeeRate          Code = 104
	CodeInsufficientReserves    Code = 105
	CodeInvalidBTokensMinted    Code = 106
	CodeInvalidBTokensBurnt     Code = 107
	CodeInvalidSharesMinted     Code = 108
	CodeInvalidFeeRateType      Code = 109
	CodeNoRewardsConfigured     Code = 110
	CodeInvalidRewardConfig     Code = 111
	CodeInvalidSharesBurnt      Code = 112
)

// Error is a vault failure carrying its code. Sentinels are compared by identity.
type Error struct {
	Code Code
	Name string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Name, e.Code)
}

var (
	ErrBalance                 = &Error{CodeBalanceError, "balance error"}
	ErrReserveNotFound         = &Error{CodeReserveNotFound, "reserve not found"}
	ErrReserveAlreadyExists    = &Error{CodeReserveAlreadyExists, "reserve already exists"}
	ErrInvalidAmount           = &Error{CodeInvalidAmount, "invalid amount"}
	ErrInsufficientAccruedFees = &Error{CodeInsufficientAccruedFees, "insufficient accrued fees"}
	ErrInvalidFeeRate          = &Error{CodeInvalidFeeRate, "invalid fee rate"}
	ErrInsufficientReserves    = &Error{CodeInsufficientReserves, "insufficient reserves"}
	ErrInvalidBTokensMinted    = &Error{CodeInvalidBTokensMinted, "invalid b-tokens minted"}
	ErrInvalidBTokensBurnt     = &Error{CodeInvalidBTokensBurnt, "invalid b-tokens burnt"}
	ErrInvalidSharesMinted     = &Error{CodeInvalidSharesMinted, "invalid shares minted"}
	ErrInvalidFeeRateType      = &Error{CodeInvalidFeeRateType, "invalid fee rate type"}
	ErrNoRewardsConfigured     = &Error{CodeNoRewardsConfigured, "no rewards configured"}
	ErrInvalidRewardConfig     = &Error{CodeInvalidRewardConfig, "invalid reward config"}
	ErrInvalidSharesBurnt      = &Error{CodeInvalidSharesBurnt, "invalid shares burnt"}
)

// CodeOf extracts the vault failure code from err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
