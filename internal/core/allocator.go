package core

import "sort"

// LocationSlot is the live capacity picture of one location at the start of an allocation pass.
type LocationSlot struct {
	LocationID int
	Code       string
	Capacity   int
	// Occupied is the sum of all products' ledger quantities at the location.
	Occupied int
	// Products lists the products with a non-zero ledger row at the location.
	Products []int
}

func (s LocationSlot) holds(productID int) bool {
	for _, id := range s.Products {
		if id == productID {
			return true
		}
	}
	return false
}

// Allocation assigns part of a requested quantity to one location.
type Allocation struct {
	LocationID int `json:"location_id"`
	Quantity   int `json:"quantity"`
}

// AllocationPass tracks capacity claimed by earlier allocations in the same pass so that two lines
// never claim the same unit of space. A pass must not outlive the transaction its snapshot was read in.
type AllocationPass struct {
	slots   map[int]LocationSlot
	order   []int
	claimed map[int]int
}

// NewAllocationPass starts a pass over a snapshot of a warehouse's locations.
func NewAllocationPass(slots []LocationSlot) *AllocationPass {
	p := &AllocationPass{
		slots:   make(map[int]LocationSlot, len(slots)),
		claimed: make(map[int]int, len(slots)),
	}
	for _, s := range slots {
		if _, dup := p.slots[s.LocationID]; dup {
			continue
		}
		p.slots[s.LocationID] = s
		p.order = append(p.order, s.LocationID)
	}
	return p
}

// Remaining is capacity − occupied − already claimed in this pass, floored at zero.
func (p *AllocationPass) Remaining(locationID int) int {
	s, ok := p.slots[locationID]
	if !ok {
		return 0
	}
	r := s.Capacity - s.Occupied - p.claimed[locationID]
	if r < 0 {
		return 0
	}
	return r
}

// Claimed returns how much of a location has been handed out in this pass.
func (p *AllocationPass) Claimed(locationID int) int {
	return p.claimed[locationID]
}

// Has reports whether the location is part of the snapshot.
func (p *AllocationPass) Has(locationID int) bool {
	_, ok := p.slots[locationID]
	return ok
}

// Allocate places qty units of a product, splitting across locations in candidate order.
// preferred, when non-zero, is tried first. Nothing is claimed unless the whole quantity fits.
func (p *AllocationPass) Allocate(productID, preferred, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, Newf(ErrCodeInvalidQuantity, "allocation quantity must be positive, got %d", qty)
	}

	var out []Allocation
	left := qty
	for _, id := range p.candidates(productID, preferred) {
		if left == 0 {
			break
		}
		free := p.Remaining(id)
		if free <= 0 {
			continue
		}
		take := min(left, free)
		out = append(out, Allocation{LocationID: id, Quantity: take})
		left -= take
	}
	if left > 0 {
		return nil, Newf(ErrCodeCapacityExceeded,
			"insufficient location capacity: %d of %d units could not be placed", left, qty)
	}

	for _, a := range out {
		p.claimed[a.LocationID] += a.Quantity
	}
	return out, nil
}

// candidates orders locations: preferred first, then those already holding the product, then by code.
func (p *AllocationPass) candidates(productID, preferred int) []int {
	ids := make([]int, len(p.order))
	copy(ids, p.order)
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := p.slots[ids[i]], p.slots[ids[j]]
		if (a.LocationID == preferred) != (b.LocationID == preferred) {
			return a.LocationID == preferred
		}
		if ha, hb := a.holds(productID), b.holds(productID); ha != hb {
			return ha
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.LocationID < b.LocationID
	})
	return ids
}
