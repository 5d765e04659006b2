package model

import "errors"

var (
	ErrSupplierInUse     = errors.New("supplier is referenced by at least one resource")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)
