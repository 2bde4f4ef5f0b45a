package escrow

import "xdao.co/trustchain/domain"

// ProductMeta returns the product record.
func (e *Escrow) ProductMeta(productID string) (domain.Product, error) {
	p, ok := e.store.Product(productID)
	if !ok {
		return domain.Product{}, domain.ErrUnknownProduct
	}
	return p, nil
}

// Distributors returns the stakes on a product in staking order.
func (e *Escrow) Distributors(productID string) ([]domain.DistributorStake, error) {
	if _, ok := e.store.Product(productID); !ok {
		return nil, domain.ErrUnknownProduct
	}
	return e.store.Distributors(productID), nil
}

// DKGBinding returns the external binding written at product creation.
func (e *Escrow) DKGBinding(productID string) (domain.DKGBinding, error) {
	b, ok := e.store.Binding(productID)
	if !ok {
		return domain.DKGBinding{}, domain.ErrUnknownProduct
	}
	return b, nil
}

// VerifyDKGAsset reports whether productID has a verified binding.
func (e *Escrow) VerifyDKGAsset(productID string) bool {
	b, ok := e.store.Binding(productID)
	return ok && b.Verified
}

// Products lists every product id in lexicographic order.
func (e *Escrow) Products() []string { return e.store.ProductIDs() }
