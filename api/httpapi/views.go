package httpapi

import (
	"time"

	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/ledger"
	"xdao.co/trustchain/settlement"
)

type stakeholderView struct {
	Address      domain.Address `json:"address"`
	Role         domain.Role    `json:"role"`
	TotalStaked  domain.Amount  `json:"totalStaked"`
	TotalRewards domain.Amount  `json:"totalRewards"`
	RegisteredAt time.Time      `json:"registeredAt"`
}

func stakeholderOf(sh domain.Stakeholder) stakeholderView {
	return stakeholderView{
		Address:      sh.Address,
		Role:         sh.Role,
		TotalStaked:  sh.TotalStaked,
		TotalRewards: sh.TotalRewards,
		RegisteredAt: sh.RegisteredAt,
	}
}

type productView struct {
	ID                 string              `json:"productId"`
	Manufacturer       domain.Address      `json:"manufacturer"`
	ManufacturerStake  domain.Amount       `json:"manufacturerStake"`
	State              domain.ProductState `json:"state"`
	IsActive           bool                `json:"isActive"`
	RewardsDistributed bool                `json:"rewardsDistributed"`
	ScoreRecorded      bool                `json:"scoreRecorded"`
	TrustScore         uint8               `json:"trustScore"`
	AnomaliesHash      *domain.Digest      `json:"anomaliesHash,omitempty"`
	VerificationHash   *domain.Digest      `json:"verificationHash,omitempty"`
	ReportCID          string              `json:"reportCid,omitempty"`
	ReportIssuer       string              `json:"reportIssuer,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	ScoredAt           *time.Time          `json:"scoredAt,omitempty"`
	SettledAt          *time.Time          `json:"settledAt,omitempty"`
}

func productOf(p domain.Product) productView {
	v := productView{
		ID:                 p.ID,
		Manufacturer:       p.Manufacturer,
		ManufacturerStake:  p.ManufacturerStake,
		State:              p.State,
		IsActive:           p.IsActive(),
		RewardsDistributed: p.RewardsDistributed(),
		ScoreRecorded:      p.ScoreRecorded,
		TrustScore:         p.TrustScore,
		ReportCID:          p.ReportCID,
		ReportIssuer:       p.ReportIssuer,
		CreatedAt:          p.CreatedAt,
	}
	if p.ScoreRecorded {
		a, vd, at := p.AnomaliesDigest, p.VerificationDigest, p.ScoredAt
		v.AnomaliesHash, v.VerificationHash, v.ScoredAt = &a, &vd, &at
	}
	if !p.SettledAt.IsZero() {
		at := p.SettledAt
		v.SettledAt = &at
	}
	return v
}

type stakeView struct {
	Distributor domain.Address `json:"distributor"`
	Amount      domain.Amount  `json:"amount"`
	StakedAt    time.Time      `json:"stakedAt"`
}

func stakesOf(stakes []domain.DistributorStake) []stakeView {
	out := make([]stakeView, 0, len(stakes))
	for _, s := range stakes {
		out = append(out, stakeView{Distributor: s.Distributor, Amount: s.Amount, StakedAt: s.StakedAt})
	}
	return out
}

type bindingView struct {
	ProductID       string    `json:"productId"`
	ExternalLocator string    `json:"externalLocator"`
	ContentDigest   string    `json:"contentDigest"`
	Verified        bool      `json:"verified"`
	BoundAt         time.Time `json:"boundAt"`
}

type disputeView struct {
	ProductID      string               `json:"productId"`
	Status         domain.DisputeStatus `json:"status"`
	Opener         domain.Address       `json:"opener,omitempty"`
	EvidenceDigest string               `json:"evidenceDigest,omitempty"`
	GuiltyParty    domain.Address       `json:"guiltyParty,omitempty"`
	ResolvedAmount domain.Amount        `json:"resolvedAmount"`
	OpenedAt       *time.Time           `json:"openedAt,omitempty"`
	ResolvedAt     *time.Time           `json:"resolvedAt,omitempty"`
}

func disputeOf(d domain.Dispute) disputeView {
	v := disputeView{
		ProductID:      d.ProductID,
		Status:         d.Status,
		Opener:         d.Opener,
		EvidenceDigest: d.EvidenceDigest,
		GuiltyParty:    d.GuiltyParty,
		ResolvedAmount: d.ResolvedAmount,
	}
	if !d.OpenedAt.IsZero() {
		at := d.OpenedAt
		v.OpenedAt = &at
	}
	if !d.ResolvedAt.IsZero() {
		at := d.ResolvedAt
		v.ResolvedAt = &at
	}
	return v
}

type reputationView struct {
	Address            domain.Address `json:"address"`
	SuccessfulProducts uint64         `json:"successfulProducts"`
	FlaggedProducts    uint64         `json:"flaggedProducts"`
	Score              uint64         `json:"score"`
	Level              domain.Level   `json:"level"`
}

func reputationOf(r domain.ReputationRecord) reputationView {
	return reputationView{
		Address:            r.Address,
		SuccessfulProducts: r.SuccessfulProducts,
		FlaggedProducts:    r.FlaggedProducts,
		Score:              r.Score(),
		Level:              r.Level(),
	}
}

type outcomeView struct {
	ProductID string              `json:"productId"`
	Tier      settlement.Tier     `json:"tier"`
	Payouts   []ledger.Transfer   `json:"payouts"`
	Bonus     domain.Amount       `json:"bonus"`
	State     domain.ProductState `json:"state"`
}

func outcomeOf(o settlement.Outcome) outcomeView {
	payouts := o.Payouts
	if payouts == nil {
		payouts = []ledger.Transfer{}
	}
	return outcomeView{ProductID: o.ProductID, Tier: o.Tier, Payouts: payouts, Bonus: o.Bonus, State: o.State}
}
