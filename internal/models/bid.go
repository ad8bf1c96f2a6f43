package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestType string

const (
	RequestSend  RequestType = "send"
	RequestBring RequestType = "bring"
)

type BidStatus string

const (
	BidPending            BidStatus = "pending"
	BidRejected           BidStatus = "rejected"
	BidAwaitingPayment    BidStatus = "awaitingPayment"
	BidPaymentConfirmed   BidStatus = "paymentConfirmed"
	BidPickupRequested    BidStatus = "pickupRequested"
	BidPickedUp           BidStatus = "pickedUp"
	BidInTransitDeparture BidStatus = "inTransitDeparture"
	BidInTransitArrival   BidStatus = "inTransitArrival"
	BidDelivered          BidStatus = "delivered"
	BidReceived           BidStatus = "received"
)

type CheckStatus string

const (
	CheckPending    CheckStatus = "checkPending"
	CheckApproved   CheckStatus = "checkApproved"
	CheckUnapproved CheckStatus = "checkUnapproved"
)

type Bid struct {
	ID                string          `json:"id"`
	SenderID          string          `json:"sender_id"`
	TravelerID        string          `json:"traveler_id"`
	PostID            string          `json:"post_id"`
	RequestType       RequestType     `json:"request_type"`
	ParcelType        string          `json:"parcel_type"`
	ParcelWeight      decimal.Decimal `json:"parcel_weight"`
	ParcelDescription string          `json:"parcel_description"`
	IsImportantParcel bool            `json:"is_important_parcel"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	Status            BidStatus       `json:"status"`
	CheckStatus       *CheckStatus    `json:"checkStatus,omitempty"`
	PayoutProcessed   bool            `json:"payoutProcessed"`
	EscrowCaptured    bool            `json:"escrowCaptured"`
	TravelerEarnings  decimal.Decimal `json:"travelerEarnings"`
	PlatformFee       decimal.Decimal `json:"platformFee"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Ordered normal-path status sequence per request type. Send and bring
// currently share the same path; keeping the table keyed by type lets
// them diverge without touching the validation logic.
var bidPaths = map[RequestType][]BidStatus{
	RequestSend: {
		BidPending, BidAwaitingPayment, BidPaymentConfirmed, BidPickupRequested,
		BidPickedUp, BidInTransitDeparture, BidInTransitArrival, BidDelivered, BidReceived,
	},
	RequestBring: {
		BidPending, BidAwaitingPayment, BidPaymentConfirmed, BidPickupRequested,
		BidPickedUp, BidInTransitDeparture, BidInTransitArrival, BidDelivered, BidReceived,
	},
}

func pathIndex(rt RequestType, s BidStatus) int {
	for i, st := range bidPaths[rt] {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether to is a legal direct successor of from
// for the given request type. Rejection is reachable only from pending.
func CanTransition(rt RequestType, from, to BidStatus) bool {
	if to == BidRejected {
		return from == BidPending
	}
	i, j := pathIndex(rt, from), pathIndex(rt, to)
	return i >= 0 && j == i+1
}

// NextStatus returns the normal-path successor of from, if any.
func NextStatus(rt RequestType, from BidStatus) (BidStatus, bool) {
	i := pathIndex(rt, from)
	path := bidPaths[rt]
	if i < 0 || i+1 >= len(path) {
		return "", false
	}
	return path[i+1], true
}

// RequiresCheckApproval reports whether reaching to implies physical
// handover, i.e. pickupRequested or later on the normal path. Important
// parcels must have an approved check before any such transition.
func RequiresCheckApproval(rt RequestType, to BidStatus) bool {
	j := pathIndex(rt, to)
	return j >= 0 && j >= pathIndex(rt, BidPickupRequested)
}

// IsTerminal reports whether no further transition is allowed.
func (s BidStatus) IsTerminal() bool {
	return s == BidRejected || s == BidReceived
}

func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidRejected, BidAwaitingPayment, BidPaymentConfirmed,
		BidPickupRequested, BidPickedUp, BidInTransitDeparture,
		BidInTransitArrival, BidDelivered, BidReceived:
		return true
	}
	return false
}

func (rt RequestType) Valid() bool { return rt == RequestSend || rt == RequestBring }

// CheckApproved reports whether the important-parcel gate is open.
func (b *Bid) CheckApproved() bool {
	return b.CheckStatus != nil && *b.CheckStatus == CheckApproved
}
