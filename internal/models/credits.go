package models

// CreditPackage is a fixed purchasable tier. Credits and USDPrice never vary
// per request; the server is the source of truth for both.
type CreditPackage struct {
	Name     string
	Credits  int64
	USDPrice float64
}

var creditPackages = map[string]CreditPackage{
	"trial":   {Name: "trial", Credits: 100, USDPrice: 0.99},
	"starter": {Name: "starter", Credits: 1000, USDPrice: 10.00},
	"power":   {Name: "power", Credits: 5000, USDPrice: 45.00},
	"pro":     {Name: "pro", Credits: 12000, USDPrice: 100.00},
}

// PackageByName returns the credit package for name, or false for unknown tiers.
func PackageByName(name string) (CreditPackage, bool) {
	pkg, ok := creditPackages[name]
	return pkg, ok
}

// PackageNames lists the purchasable tier names in ascending price order.
func PackageNames() []string {
	return []string{"trial", "starter", "power", "pro"}
}
