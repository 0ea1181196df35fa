package advisory

// Clothing is a clothing recommendation for a given temperature.
type Clothing string

const (
	ClothingLight       Clothing = "light/short-sleeve clothing"
	ClothingLongSleeve  Clothing = "long-sleeve shirt"
	ClothingLightJacket Clothing = "long sleeve + light jacket"
	ClothingSweater     Clothing = "sweater/cardigan"
	ClothingJacket      Clothing = "jacket/coat"
	ClothingHeavyCoat   Clothing = "heavy coat"
	ClothingWinterCoat  Clothing = "down/heavy winter coat"
)

// clothingBands is evaluated top-down; the first band whose threshold is
// at or below the temperature wins.
var clothingBands = []struct {
	min      float64
	clothing Clothing
}{
	{28, ClothingLight},
	{23, ClothingLongSleeve},
	{20, ClothingLightJacket},
	{15, ClothingSweater},
	{10, ClothingJacket},
	{5, ClothingHeavyCoat},
}

// RecommendClothing maps a temperature in °C to a recommendation.
// NaN fails every comparison and lands on the winter coat.
func RecommendClothing(temp float64) Clothing {
	for _, b := range clothingBands {
		if temp >= b.min {
			return b.clothing
		}
	}
	return ClothingWinterCoat
}
