package exception

import "github.com/yanun0323/errors"

var (
	ErrGatewayNotAlive         = errors.New("gateway: not alive")
	ErrGatewayUnknownAccount   = errors.New("gateway: unknown account")
	ErrGatewayUnknownFactory   = errors.New("gateway: unknown factory key")
	ErrGatewayDuplicateName    = errors.New("gateway: duplicate factory key")
	ErrGatewayQuoteUnavailable = errors.New("gateway: quote unavailable")
	ErrGatewayCancelFailed     = errors.New("gateway: cancel failed")
)
