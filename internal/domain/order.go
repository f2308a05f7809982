package domain

import "time"

// Order es la capacidad común de bids y offers que necesita el matching:
// identidad, dueño, volumen y precio por unidad.
type Order interface {
	OrderID() string
	Owner() string
	Volume() float64
	Rate() float64
}

// Bid es una orden de compra de energía.
type Bid struct {
	ID            string
	Type          string // "Bid" en el payload original
	Buyer         string
	BuyerID       string
	BuyerOrigin   string
	BuyerOriginID string
	Energy        float64 // kWh, > 0
	EnergyRate    float64 // precio por kWh, >= 0
	OriginalPrice float64
	TimeSlot      time.Time
	CreationTime  time.Time
	Attributes    string
	Requirements  string
}

func (b Bid) OrderID() string { return b.ID }
func (b Bid) Owner() string { return b.Buyer }
func (b Bid) Volume() float64 { return b.Energy }
func (b Bid) Rate() float64 { return b.EnergyRate }

// Offer es una orden de venta de energía. Simétrica a Bid con el vendedor
// en lugar del comprador.
type Offer struct {
	ID             string
	Type           string
	Seller         string
	SellerID       string
	SellerOrigin   string
	SellerOriginID string
	Energy         float64
	EnergyRate     float64
	OriginalPrice  float64
	TimeSlot       time.Time
	CreationTime   time.Time
	Attributes     string
	Requirements   string
}

func (o Offer) OrderID() string { return o.ID }
func (o Offer) Owner() string { return o.Seller }
func (o Offer) Volume() float64 { return o.Energy }
func (o Offer) Rate() float64 { return o.EnergyRate }

var (
	_ Order = Bid{}
	_ Order = Offer{}
)
