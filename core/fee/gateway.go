package fee

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Charge struct {
		PaymentNumber string
		ParentID      string
		Amount        decimal.Decimal
		Method        string
	}

	Receipt struct {
		Status        PaymentStatus
		TransactionID string
		SettledAt     time.Time
	}

	// Gateway settles a charge. A real payment provider would plug in here.
	Gateway interface {
		Charge(ctx context.Context, charge Charge) (Receipt, error)
	}

	instantGateway struct{}
)

var _ Gateway = (*instantGateway)(nil)

// NewInstantGateway returns a Gateway that settles every charge immediately.
func NewInstantGateway() Gateway {
	return instantGateway{}
}

func (instantGateway) Charge(_ context.Context, _ Charge) (Receipt, error) {
	now := time.Now().UTC()
	return Receipt{
		Status:        PaymentCompleted,
		TransactionID: "TXN" + strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 10),
		SettledAt:     now,
	}, nil
}
