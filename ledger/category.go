/*
category.go - Static category to allowed-type table

PURPOSE:
  Each category restricts the transaction's free-form "type" field to a
  fixed list. The table is validation-only data; the Engine consults it
  once per mutation.

DERIVED TYPE:
  "Debt Payment" is never user-settable in the usual sense: whenever a
  transaction carries a debt reference the Engine forces the type to
  TypeDebtPayment after the debt has been resolved and ownership-checked.

SEE ALSO:
  - engine.go: validation order around the debt override
*/
package ledger

// TypeDebtPayment is the Expense type assigned whenever a debt reference is
// present on a transaction.
const TypeDebtPayment = "Debt Payment"

var typesByCategory = map[Category][]string{
	CategoryExpense: {
		"Food", "Transport", "Travel", "Groceries", "House", "Cure", "Pet",
		"Education", "Clothes", "Cosmetics", "Accessories", "Insurance",
		"Hobby", "Utilities", "Vehicle", "Fee", "Business", "Game",
		TypeDebtPayment, "Other",
	},
	CategoryIncome: {
		"40(1)Salary", "40(2)Freelance", "40(3)Royalties", "40(4)Interest",
		"40(5)Rent", "40(6)Profession", "40(7)Contract", "40(8)Business",
		"Other",
	},
	CategoryTransfer: {
		"Transfer",
	},
}

// ValidType reports whether t is an allowed type for category c.
func ValidType(c Category, t string) bool {
	for _, allowed := range typesByCategory[c] {
		if allowed == t {
			return true
		}
	}
	return false
}

// AllowedTypes returns a copy of the allowed types for one category.
func AllowedTypes(c Category) []string {
	return append([]string(nil), typesByCategory[c]...)
}

// AllTypes returns the full category to types table, for the API type listing.
func AllTypes() map[Category][]string {
	out := make(map[Category][]string, len(typesByCategory))
	for c := range typesByCategory {
		out[c] = AllowedTypes(c)
	}
	return out
}
