package types

import "strings"

// Reserved columns present on every imported table. User-derived names never
// start with ReservedPrefix unless they already did in the document.
const (
	ReservedPrefix = "_"

	ColID       = "_Id"
	ColParentID = "_ParentId"
	ColPath     = "_Path"
	ColNS       = "_NS"
	ColValue    = "_Value"
)

// ReservedColumns lists the reserved columns in table-definition order.
var ReservedColumns = []string{ColID, ColParentID, ColPath, ColNS, ColValue}

// IsReservedColumn reports whether name denotes a reserved column, ignoring case.
func IsReservedColumn(name string) bool {
	for _, c := range ReservedColumns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
