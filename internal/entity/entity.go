// Package entity defines the fixed set of application tables a datatable
// can extend, and enforces office-hierarchy data scoping when rows are read
// or written through a datatable.
package entity

import (
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/errs"
)

// Application tables a datatable may attach to. The set is closed; runtime
// schema changes never extend it.
const (
	Client         = "m_client"
	Group          = "m_group"
	Center         = "m_center"
	Office         = "m_office"
	Loan           = "m_loan"
	SavingsAccount = "m_savings_account"
	LoanProduct    = "m_product_loan"
	SavingsProduct = "m_savings_product"
)

var supported = map[string]bool{
	Client:         true,
	Group:          true,
	Center:         true,
	Office:         true,
	Loan:           true,
	SavingsAccount: true,
	LoanProduct:    true,
	SavingsProduct: true,
}

// Validate rejects application tables outside the supported set.
func Validate(appTable string) error {
	if !supported[strings.ToLower(appTable)] {
		return errs.Validation("datatable.application.table.invalid",
			fmt.Sprintf("invalid application table %q", appTable)).WithParam("apptableName")
	}
	return nil
}

// Actual maps an application table to the table actually holding its rows.
// Centers are a specialized kind of group stored in m_group; everything
// else maps to itself.
func Actual(appTable string) string {
	if strings.EqualFold(appTable, Center) {
		return Group
	}
	return appTable
}

// FKColumn derives the datatable column referencing the application table's
// id, from the registered name: m_client rows are referenced through
// client_id, m_center rows through center_id even though they live in
// m_group.
func FKColumn(appTable string) string {
	return appTable[2:] + "_id"
}

// Normalize lowercases an application table name after validating it.
func Normalize(appTable string) (string, error) {
	if err := Validate(appTable); err != nil {
		return "", err
	}
	return strings.ToLower(appTable), nil
}
