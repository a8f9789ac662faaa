package models

import "fmt"

type Role string

const (
	RoleAdmin    Role = "Admin"
	RolePurchase Role = "Purchase"
	RolePacking  Role = "Packing"
	RoleDispatch Role = "Dispatch"
	RoleFactory  Role = "Factory"
	RoleQCStock  Role = "QC_Stock"
	RoleDelivery Role = "Delivery"
)

var AllRoles = []Role{
	RoleAdmin, RolePurchase, RolePacking, RoleDispatch, RoleFactory, RoleQCStock, RoleDelivery,
}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

type Status string

const (
	StatusPurchased           Status = "PURCHASED"
	StatusPackedReady         Status = "PACKED_READY"
	StatusDispatchedToFactory Status = "DISPATCHED_TO_FACTORY"
	StatusReceivedAtFactory   Status = "RECEIVED_AT_FACTORY"
	StatusReturnedFromFactory Status = "RETURNED_FROM_FACTORY"
	StatusReceivedAtShop      Status = "RECEIVED_AT_SHOP"
	StatusAddedToStock        Status = "ADDED_TO_STOCK"
	StatusHandedToDelivery    Status = "HANDED_TO_DELIVERY"
	StatusDeliveredToCustomer Status = "DELIVERED_TO_CUSTOMER"
	StatusOnHold              Status = "ON_HOLD"
	StatusCancelled           Status = "CANCELLED"
)

var AllStatuses = []Status{
	StatusPurchased, StatusPackedReady, StatusDispatchedToFactory,
	StatusReceivedAtFactory, StatusReturnedFromFactory, StatusReceivedAtShop,
	StatusAddedToStock, StatusHandedToDelivery, StatusDeliveredToCustomer,
	StatusOnHold, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

type ItemSource string

const (
	ItemSourceStock  ItemSource = "Stock"
	ItemSourceRepair ItemSource = "Repair"
)

func (s ItemSource) Valid() bool {
	return s == ItemSourceStock || s == ItemSourceRepair
}

type RepairType string

const (
	RepairTypeCustomer RepairType = "Customer Repair"
	RepairTypeStock    RepairType = "Stock Repair"
)

func (r RepairType) Valid() bool {
	return r == RepairTypeCustomer || r == RepairTypeStock
}

// BatchStatus keeps RECEIVED_AT_FACTORY and RETURNED in the column enum for
// storage compatibility with older rows; no code path sets them.
type BatchStatus string

const (
	BatchStatusCreated           BatchStatus = "CREATED"
	BatchStatusDispatched        BatchStatus = "DISPATCHED"
	BatchStatusReceivedAtFactory BatchStatus = "RECEIVED_AT_FACTORY"
	BatchStatusReturned          BatchStatus = "RETURNED"
	BatchStatusClosed            BatchStatus = "CLOSED"
)

var allBatchStatuses = []BatchStatus{
	BatchStatusCreated, BatchStatusDispatched, BatchStatusReceivedAtFactory,
	BatchStatusReturned, BatchStatusClosed,
}

func (s BatchStatus) Valid() bool {
	for _, known := range allBatchStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid batch status %q", s)
	}
	return st, nil
}

type IncidentType string

const (
	IncidentTypeStickerMismatch IncidentType = "StickerMismatch"
	IncidentTypeMissingItem     IncidentType = "MissingItem"
	IncidentTypeDuplicateScan   IncidentType = "DuplicateScan"
	IncidentTypeDamage          IncidentType = "Damage"
	IncidentTypeOther           IncidentType = "Other"
)

var AllIncidentTypes = []IncidentType{
	IncidentTypeStickerMismatch, IncidentTypeMissingItem,
	IncidentTypeDuplicateScan, IncidentTypeDamage, IncidentTypeOther,
}

func (t IncidentType) Valid() bool {
	for _, known := range AllIncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

func ParseIncidentType(s string) (IncidentType, error) {
	t := IncidentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid incident type %q", s)
	}
	return t, nil
}

type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "OPEN"
	IncidentStatusResolved IncidentStatus = "RESOLVED"
)

func ParseIncidentStatus(s string) (IncidentStatus, error) {
	st := IncidentStatus(s)
	if st != IncidentStatusOpen && st != IncidentStatusResolved {
		return "", fmt.Errorf("invalid incident status %q", s)
	}
	return st, nil
}

func RoleStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func RolesFromStrings(values []string) []Role {
	out := make([]Role, 0, len(values))
	for _, v := range values {
		out = append(out, Role(v))
	}
	return out
}
