// Package httpapi exposes the trustchain System over JSON/HTTP.
//
// Mutating routes require an HS256 bearer token whose subject is the caller
// address. Trust reports carry their own attestor signature and are accepted
// without a token. Errors are returned as {"code","kind","message"} with a
// status derived from the error kind.
package httpapi

import (
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/escrow"
	"xdao.co/trustchain/journal"
	"xdao.co/trustchain/trustchain"
)

const (
	maxJSONBytes     = 1 << 20
	maxEvidenceBytes = 8 << 20
)

// Options configures NewHandler.
type Options struct {
	// Secret verifies bearer tokens. Required.
	Secret []byte
	Logger *log.Logger
	Now    func() time.Time
}

type handler struct {
	sys    *trustchain.System
	logger *log.Logger
}

// NewHandler returns the routed API for sys.
func NewHandler(sys *trustchain.System, opts Options) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	h := &handler{sys: sys, logger: opts.Logger}
	auth := authenticator{secret: opts.Secret, now: now}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		api.Get("/stakeholders/{address}", h.getStakeholder)
		api.Get("/products", h.listProducts)
		api.Get("/products/{id}", h.getProduct)
		api.Get("/products/{id}/distributors", h.getDistributors)
		api.Get("/products/{id}/dkg", h.getBinding)
		api.Get("/products/{id}/dispute", h.getDispute)
		api.Get("/products/{id}/history", h.getHistory)
		api.Get("/products/{id}/bundle", h.getBundle)
		api.Get("/reputation/{address}", h.getReputation)
		api.Get("/pool", h.getPool)
		api.Get("/attestors", h.listAttestors)
		api.Get("/evidence/{cid}", h.getEvidence)
		api.Post("/reports", h.postReport)

		api.Group(func(priv chi.Router) {
			priv.Use(auth.middleware)
			priv.Post("/stakeholders", h.postStakeholder)
			priv.Post("/products", h.postProduct)
			priv.Post("/products/{id}/distributors", h.postDistributor)
			priv.Post("/products/{id}/settle", h.postSettle)
			priv.Post("/products/{id}/dispute", h.postDispute)
			priv.Post("/products/{id}/dispute/resolve", h.postResolve)
			priv.Post("/pool", h.postPool)
			priv.Post("/evidence", h.postEvidence)
			priv.Post("/attestors", h.postAttestor)
			// Issuer keys are base64 and may contain "/".
			priv.Delete("/attestors/*", h.deleteAttestor)
		})
	})
	return r
}

func pathAddress(r *http.Request, name string) (domain.Address, error) {
	return domain.ParseAddress(chi.URLParam(r, name))
}

func (h *handler) postStakeholder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sh, err := h.sys.Register(r.Context(), callerFrom(r.Context()), req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stakeholderOf(sh))
}

func (h *handler) getStakeholder(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sh, err := h.sys.Stakeholder(addr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stakeholderOf(sh))
}

func (h *handler) postProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID       string        `json:"productId"`
		Amount          domain.Amount `json:"amount"`
		ExternalLocator string        `json:"externalLocator"`
		ContentDigest   string        `json:"contentDigest"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.sys.CreateProduct(r.Context(), callerFrom(r.Context()), escrow.CreateProductRequest{
		ProductID:       req.ProductID,
		Amount:          req.Amount,
		ExternalLocator: req.ExternalLocator,
		ContentDigest:   req.ContentDigest,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productOf(p))
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"products": h.sys.Products()})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.sys.ProductMeta(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productOf(p))
}

func (h *handler) postDistributor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount domain.Amount `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	stake, err := h.sys.JoinAsDistributor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stakesOf([]domain.DistributorStake{stake})[0])
}

func (h *handler) getDistributors(w http.ResponseWriter, r *http.Request) {
	stakes, err := h.sys.Distributors(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"distributors": stakesOf(stakes)})
}

func (h *handler) getBinding(w http.ResponseWriter, r *http.Request) {
	b, err := h.sys.DKGBinding(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bindingView(b))
}

func (h *handler) postReport(w http.ResponseWriter, r *http.Request) {
	env, err := attest.ParseEnvelope(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.sys.ReportTrustScore(r.Context(), env)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productOf(p))
}

func (h *handler) postSettle(w http.ResponseWriter, r *http.Request) {
	out, err := h.sys.DistributeRewards(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeOf(out))
}

func (h *handler) postDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EvidenceDigest string `json:"evidenceDigest"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.sys.OpenDispute(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.EvidenceDigest)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, disputeOf(d))
}

func (h *handler) postResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuiltyParty string        `json:"guiltyParty"`
		Amount      domain.Amount `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var guilty domain.Address
	if strings.TrimSpace(req.GuiltyParty) != "" {
		var err error
		if guilty, err = domain.ParseAddress(req.GuiltyParty); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	d, err := h.sys.ResolveDispute(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), guilty, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, disputeOf(d))
}

func (h *handler) getDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.sys.Dispute(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, disputeOf(d))
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sys.ProductMeta(id); err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.sys.History(r.Context(), journal.Filter{Target: id})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *handler) getBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sys.ProductMeta(id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.tar"`)
	if err := h.sys.ExportBundle(r.Context(), w, id); err != nil {
		// Nothing has been written: ExportBundle buffers the archive.
		w.Header().Del("Content-Disposition")
		h.fail(w, r, err)
	}
}

func (h *handler) getReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reputationOf(h.sys.Reputation(addr)))
}

func (h *handler) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.sys.RewardPool(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Amount{"rewardPool": pool})
}

func (h *handler) postPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount domain.Amount `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sys.FundRewardPool(r.Context(), callerFrom(r.Context()), req.Amount); err != nil {
		h.fail(w, r, err)
		return
	}
	h.getPool(w, r)
}

func (h *handler) postEvidence(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxEvidenceBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		h.fail(w, r, domain.WrapError(domain.CodeEmptyEvidence, "read evidence body", err))
		return
	}
	ref, err := h.sys.SubmitEvidence(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"cid": ref})
}

func (h *handler) getEvidence(w http.ResponseWriter, r *http.Request) {
	data, err := h.sys.Evidence(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (h *handler) listAttestors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"attestors": h.sys.Attestors()})
}

func (h *handler) postAttestor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssuerKey string `json:"issuerKey"`
	}
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sys.AuthorizeAttestor(r.Context(), callerFrom(r.Context()), req.IssuerKey); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteAttestor(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.RevokeAttestor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "*")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
