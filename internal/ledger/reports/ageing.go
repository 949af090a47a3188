package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AgeingBucket holds one role's balances bucketed by posting_date age.
type AgeingBucket struct {
	Role      string
	Current   decimal.Decimal // 0-30 days
	Bucket60  decimal.Decimal // 31-60
	Bucket90  decimal.Decimal // 61-90
	BucketOld decimal.Decimal // 90+
	Total     decimal.Decimal
}

// BuildAgeing buckets party-control balances per role. Party control
// accounts are credit normal: positive means the business owes the role.
func BuildAgeing(asOf time.Time, amounts []PartyAmount) []AgeingBucket {
	byRole := make(map[string]*AgeingBucket)
	for _, pa := range amounts {
		bucket, ok := byRole[pa.Role]
		if !ok {
			bucket = &AgeingBucket{Role: pa.Role}
			byRole[pa.Role] = bucket
		}
		net := pa.Credit.Sub(pa.Debit)
		days := int(asOf.Sub(pa.PostingDate).Hours() / 24)
		switch {
		case days <= 30:
			bucket.Current = bucket.Current.Add(net)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(net)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(net)
		default:
			bucket.BucketOld = bucket.BucketOld.Add(net)
		}
		bucket.Total = bucket.Total.Add(net)
	}
	out := make([]AgeingBucket, 0, len(byRole))
	for _, bucket := range byRole {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
