// Package mocks holds gomock doubles for the core ports.
//
// Regenerate after changing an interface:
//
//	go generate ./core/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen -destination=core.go -package=mocks github.com/PaulFidika/fleetauth/core TokenIssuer,ResetNotifier
