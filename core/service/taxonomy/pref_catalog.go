package taxonomy

import "preference_server/core/domain"

// Main category ids.
const (
	Electronics        domain.CategoryID = 100
	Clothing           domain.CategoryID = 200
	HomeGarden         domain.CategoryID = 300
	BeautyPersonalCare domain.CategoryID = 400
	SportsOutdoors     domain.CategoryID = 500
	BooksMedia         domain.CategoryID = 600
	FoodGrocery        domain.CategoryID = 700
	Automotive         domain.CategoryID = 800
	HealthWellness     domain.CategoryID = 900
	ToysGames          domain.CategoryID = 1000
)

// Subcategory ids referenced from code and tests.
const (
	Smartphones            domain.CategoryID = 101
	Computers              domain.CategoryID = 102
	Audio                  domain.CategoryID = 103
	TVsDisplays            domain.CategoryID = 104
	Cameras                domain.CategoryID = 105
	Wearables              domain.CategoryID = 106
	Gaming                 domain.CategoryID = 107
	SmartHome              domain.CategoryID = 108
	Tablets                domain.CategoryID = 109
	ElectronicsAccessories domain.CategoryID = 110

	MensClothing        domain.CategoryID = 201
	WomensClothing      domain.CategoryID = 202
	ChildrensClothing   domain.CategoryID = 203
	Footwear            domain.CategoryID = 204
	ClothingAccessories domain.CategoryID = 205
	Activewear          domain.CategoryID = 206

	Furniture   domain.CategoryID = 301
	Kitchen     domain.CategoryID = 302
	HomeDecor   domain.CategoryID = 303
	BeddingBath domain.CategoryID = 304
	Garden      domain.CategoryID = 306

	Skincare  domain.CategoryID = 401
	Makeup    domain.CategoryID = 402
	Haircare  domain.CategoryID = 403
	Fragrance domain.CategoryID = 404

	Fitness           domain.CategoryID = 501
	OutdoorRecreation domain.CategoryID = 502
	SportsEquipment   domain.CategoryID = 503
)

// KeywordGroup binds an ordered keyword list to a category.
type KeywordGroup struct {
	Category domain.CategoryID `yaml:"category"`
	Keywords []string          `yaml:"keywords"`
}

// PatternGroup maps a regular expression over raw category names to a
// main category.
type PatternGroup struct {
	Pattern  string            `yaml:"pattern"`
	Category domain.CategoryID `yaml:"category"`
}

// Catalog is the declarative source a Directory is built from.
// Slice order is significant: keyword and pattern groups are matched in
// the order they are listed.
type Catalog struct {
	Version             string                                       `yaml:"version"`
	Categories          []domain.Category                            `yaml:"categories"`
	Schemas             map[domain.CategoryID]domain.AttributeSchema `yaml:"schemas"`
	PriceTiers          map[domain.CategoryID][]domain.PriceTier     `yaml:"price_tiers"`
	DefaultTiers        domain.CategoryID                            `yaml:"default_tiers"`
	Patterns            []PatternGroup                               `yaml:"patterns"`
	SubcategoryKeywords []KeywordGroup                               `yaml:"subcategory_keywords"`
	MainKeywords        []KeywordGroup                               `yaml:"main_keywords"`
	Synonyms            []KeywordGroup                               `yaml:"synonyms"`
}

var priceRangeSpec = domain.AttributeSpec{
	Values: []string{domain.PriceBudget, domain.PriceMidRange, domain.PricePremium, domain.PriceLuxury},
}

func tiers(budget, mid, premium, luxury float64) []domain.PriceTier {
	return []domain.PriceTier{
		{Name: domain.PriceBudget, Min: budget, Max: mid},
		{Name: domain.PriceMidRange, Min: mid, Max: premium},
		{Name: domain.PricePremium, Min: premium, Max: luxury},
		{Name: domain.PriceLuxury, Min: luxury},
	}
}

func values(v ...string) domain.AttributeSpec {
	return domain.AttributeSpec{Values: v}
}

// BuiltinCatalog returns the product taxonomy shipped with the service.
// A fresh value is returned on every call.
func BuiltinCatalog() *Catalog {
	return &Catalog{
		Version: "1.0.2",
		Categories: []domain.Category{
			{ID: domain.CategoryOther, Name: "other"},

			{ID: Electronics, Name: "electronics"},
			{ID: Clothing, Name: "clothing"},
			{ID: HomeGarden, Name: "home_garden"},
			{ID: BeautyPersonalCare, Name: "beauty_personal_care"},
			{ID: SportsOutdoors, Name: "sports_outdoors"},
			{ID: BooksMedia, Name: "books_media"},
			{ID: FoodGrocery, Name: "food_grocery"},
			{ID: Automotive, Name: "automotive"},
			{ID: HealthWellness, Name: "health_wellness"},
			{ID: ToysGames, Name: "toys_games"},

			{ID: Smartphones, Name: "smartphones", Parent: Electronics},
			{ID: Computers, Name: "computers", Parent: Electronics},
			{ID: Audio, Name: "audio", Parent: Electronics},
			{ID: TVsDisplays, Name: "tvs_displays", Parent: Electronics},
			{ID: Cameras, Name: "cameras", Parent: Electronics},
			{ID: Wearables, Name: "wearables", Parent: Electronics},
			{ID: Gaming, Name: "gaming", Parent: Electronics},
			{ID: SmartHome, Name: "smart_home", Parent: Electronics},
			{ID: Tablets, Name: "tablets", Parent: Electronics},
			{ID: ElectronicsAccessories, Name: "electronics_accessories", Parent: Electronics},

			{ID: MensClothing, Name: "mens_clothing", Parent: Clothing},
			{ID: WomensClothing, Name: "womens_clothing", Parent: Clothing},
			{ID: ChildrensClothing, Name: "childrens_clothing", Parent: Clothing},
			{ID: Footwear, Name: "footwear", Parent: Clothing},
			{ID: ClothingAccessories, Name: "clothing_accessories", Parent: Clothing},
			{ID: Activewear, Name: "activewear", Parent: Clothing},
			{ID: 207, Name: "formal_wear", Parent: Clothing},
			{ID: 208, Name: "underwear", Parent: Clothing},
			{ID: 209, Name: "seasonal", Parent: Clothing},
			{ID: 210, Name: "sustainable_fashion", Parent: Clothing},

			{ID: Furniture, Name: "furniture", Parent: HomeGarden},
			{ID: Kitchen, Name: "kitchen", Parent: HomeGarden},
			{ID: HomeDecor, Name: "home_decor", Parent: HomeGarden},
			{ID: BeddingBath, Name: "bedding_bath", Parent: HomeGarden},
			{ID: 305, Name: "storage", Parent: HomeGarden},
			{ID: Garden, Name: "garden", Parent: HomeGarden},
			{ID: 307, Name: "lighting", Parent: HomeGarden},
			{ID: 308, Name: "appliances", Parent: HomeGarden},
			{ID: 309, Name: "home_improvement", Parent: HomeGarden},
			{ID: 310, Name: "home_office", Parent: HomeGarden},

			{ID: Skincare, Name: "skincare", Parent: BeautyPersonalCare},
			{ID: Makeup, Name: "makeup", Parent: BeautyPersonalCare},
			{ID: Haircare, Name: "haircare", Parent: BeautyPersonalCare},
			{ID: Fragrance, Name: "fragrance", Parent: BeautyPersonalCare},

			{ID: Fitness, Name: "fitness", Parent: SportsOutdoors},
			{ID: OutdoorRecreation, Name: "outdoor_recreation", Parent: SportsOutdoors},
			{ID: SportsEquipment, Name: "sports_equipment", Parent: SportsOutdoors},
		},

		Schemas: map[domain.CategoryID]domain.AttributeSchema{
			Electronics: {
				domain.AttrPriceRange: priceRangeSpec,
				domain.AttrBrand:      values("apple", "samsung", "sony", "google", "lg", "other"),
				domain.AttrColor:      values("black", "white", "silver", "gold", "blue", "red", "other"),
				domain.AttrFeature:    values("wireless", "smart", "portable", "gaming", "waterproof"),
				"rating":              values("1", "2", "3", "4", "5"),
				"release_year":        {Numeric: true},
			},
			Clothing: {
				domain.AttrPriceRange: priceRangeSpec,
				domain.AttrColor:      values("black", "white", "blue", "red", "green", "yellow", "pink", "other"),
				domain.AttrMaterial:   values("cotton", "wool", "polyester", "leather", "denim", "other"),
				"size":                values("xs", "s", "m", "l", "xl", "xxl"),
				domain.AttrStyle:      values("casual", "formal", "sport", "vintage", "business"),
				"season":              values("summer", "winter", "spring", "fall", "all_season"),
				"gender":              values("men", "women", "unisex", "children"),
			},
			HomeGarden: {
				domain.AttrPriceRange: priceRangeSpec,
				domain.AttrColor:      values("black", "white", "wood", "metal", "beige", "grey", "other"),
				domain.AttrMaterial:   values("wood", "metal", "plastic", "glass", "fabric", "other"),
				domain.AttrStyle:      values("modern", "traditional", "minimalist", "industrial", "rustic"),
				domain.AttrRoom:       values("living", "bedroom", "kitchen", "bathroom", "office", "outdoor"),
				"size":                values("small", "medium", "large"),
			},
			BeautyPersonalCare: {
				domain.AttrPriceRange: priceRangeSpec,
				domain.AttrBrand:      {},
			},
			SportsOutdoors: {
				domain.AttrPriceRange: priceRangeSpec,
				domain.AttrBrand:      {},
			},
		},

		PriceTiers: map[domain.CategoryID][]domain.PriceTier{
			Electronics:        tiers(0, 100, 500, 1000),
			Clothing:           tiers(0, 30, 100, 300),
			HomeGarden:         tiers(0, 50, 200, 500),
			BeautyPersonalCare: tiers(0, 15, 50, 100),
			SportsOutdoors:     tiers(0, 25, 100, 300),
		},
		DefaultTiers: Electronics,

		Patterns: []PatternGroup{
			{Pattern: `electronics|smartphone|computer|audio|tv|camera|wearable|gaming|tablet`, Category: Electronics},
			{Pattern: `clothing|fashion|apparel|wear|shoe|dress|pant|shirt`, Category: Clothing},
			{Pattern: `home|furniture|kitchen|decor|garden|lighting|appliance`, Category: HomeGarden},
			{Pattern: `beauty|cosmetic|makeup|skincare|personal care`, Category: BeautyPersonalCare},
			{Pattern: `sports|outdoors|fitness|exercise|recreation`, Category: SportsOutdoors},
			{Pattern: `books|media|reading|e-?book|audio ?book`, Category: BooksMedia},
			{Pattern: `food|grocery|beverage|drink|snack`, Category: FoodGrocery},
			{Pattern: `automotive|car|vehicle|auto`, Category: Automotive},
			{Pattern: `health|wellness|medical|supplement`, Category: HealthWellness},
			{Pattern: `toys|games|entertainment|plaything`, Category: ToysGames},
		},

		SubcategoryKeywords: builtinSubcategoryKeywords(),
		MainKeywords:        builtinMainKeywords(),
		Synonyms: []KeywordGroup{
			{Category: Smartphones, Keywords: []string{"smartphone", "mobile phone", "cell phone", "iphone android phone"}},
			{Category: Computers, Keywords: []string{"laptop computer", "desktop pc", "macbook windows computer"}},
		},
	}
}

func builtinSubcategoryKeywords() []KeywordGroup {
	return []KeywordGroup{
		// Electronics
		{Smartphones, []string{"phone", "smartphone", "mobile", "iphone", "android", "cell", "cellular",
			"xiaomi", "oneplus", "huawei", "pixel", "galaxy", "phone case", "screen protector"}},
		{Computers, []string{"laptop", "computer", "desktop", "pc", "mac", "chromebook", "notebook", "macbook",
			"monitor", "cpu", "processor", "ssd", "hard drive", "ram", "gpu", "keyboard", "mouse"}},
		{Audio, []string{"headphone", "speaker", "earbud", "airpod", "audio", "sound", "microphone", "earphone",
			"headset", "bluetooth speaker", "soundbar", "subwoofer", "amplifier", "bose", "sonos", "beats"}},
		{TVsDisplays, []string{"tv", "television", "monitor", "screen", "display", "projector", "smart tv",
			"led tv", "oled", "qled", "hdtv", "4k", "8k", "uhd", "roku", "firestick"}},
		{Cameras, []string{"camera", "dslr", "mirrorless", "webcam", "gopro", "lens", "photography", "video camera",
			"camcorder", "canon", "nikon", "sony camera", "security camera", "dash cam"}},
		{Wearables, []string{"smartwatch", "fitness tracker", "wearable", "apple watch", "fitbit", "garmin",
			"band", "smart ring", "smart glasses", "health tracker"}},
		{Gaming, []string{"game console", "playstation", "xbox", "nintendo", "switch", "controller", "gaming pc",
			"gaming laptop", "game", "gamer", "gaming headset", "gaming chair", "gaming mouse"}},
		{SmartHome, []string{"smart home", "alexa", "echo", "google home", "smart speaker", "smart light",
			"smart thermostat", "nest", "ring doorbell", "smart lock", "automation"}},
		{Tablets, []string{"tablet", "ipad", "kindle", "e-reader", "android tablet", "surface", "galaxy tab",
			"tablet case", "stylus", "pencil"}},
		{ElectronicsAccessories, []string{"charger", "cable", "adapter", "usb", "hdmi", "power bank", "case", "cover",
			"screen protector", "stand", "mount", "dongle", "hub"}},

		// Clothing
		{MensClothing, []string{"men", "mens", "man", "male", "guys", "menswear", "men's shirt", "men's pants",
			"men's jacket", "men's sweater", "men's hoodie", "men's suit", "men's coat",
			"men's jeans", "men's shorts"}},
		{WomensClothing, []string{"women", "womens", "woman", "female", "ladies", "womenswear", "women's dress",
			"women's shirt", "women's blouse", "women's top", "women's pants", "women's jeans",
			"women's skirt", "women's jacket", "women's coat", "women's sweater"}},
		{ChildrensClothing, []string{"kids", "children", "baby", "toddler", "infant", "youth", "boy", "girl",
			"kids clothes", "children's wear", "baby clothes", "kid's jacket", "school uniform"}},
		{Footwear, []string{"shoe", "sneaker", "boot", "footwear", "sandal", "heel", "flat", "loafer", "oxford",
			"running shoe", "athletic shoe", "slipper", "flip flop", "tennis shoe", "hiking boot"}},
		{ClothingAccessories, []string{"bag", "purse", "wallet", "backpack", "handbag", "tote", "satchel", "belt", "hat",
			"scarf", "gloves", "jewelry", "watch", "sunglasses", "tie", "socks"}},
		{Activewear, []string{"activewear", "athletic", "workout", "gym", "sport", "running", "yoga", "fitness",
			"leggings", "shorts", "jersey", "dri fit", "compression", "tracksuit", "swimwear"}},

		// Home & garden
		{Furniture, []string{"furniture", "sofa", "couch", "chair", "table", "desk", "bed", "mattress", "dresser",
			"bookcase", "shelf", "cabinet", "nightstand", "ottoman", "recliner", "sectional", "bench"}},
		{Kitchen, []string{"kitchen", "cookware", "utensil", "appliance", "dish", "pot", "pan", "knife", "blender",
			"mixer", "toaster", "coffee maker", "microwave", "cutting board", "dinnerware", "flatware"}},
		{HomeDecor, []string{"decor", "decoration", "ornament", "wall art", "vase", "candle", "frame", "mirror",
			"rug", "carpet", "pillow", "throw", "artwork", "clock", "figurine", "plant"}},
		{BeddingBath, []string{"bedding", "sheet", "pillow", "towel", "blanket", "comforter", "duvet", "quilt",
			"pillowcase", "mattress pad", "shower curtain", "bath mat", "bathroom accessory"}},
		{Garden, []string{"garden", "plant", "outdoor", "lawn", "patio", "flower", "tool", "seed", "planter",
			"pot", "hose", "sprinkler", "soil", "fertilizer", "mower", "trimmer", "rake", "shovel"}},

		// Beauty & personal care
		{Skincare, []string{"skincare", "moisturizer", "cleanser", "serum", "lotion", "cream", "face mask",
			"sunscreen", "exfoliator", "eye cream", "toner", "acne", "anti-aging"}},
		{Makeup, []string{"makeup", "cosmetic", "foundation", "concealer", "powder", "blush", "eyeshadow",
			"mascara", "eyeliner", "lipstick", "lip gloss", "bronzer", "highlighter", "beauty blender"}},
		{Haircare, []string{"hair", "shampoo", "conditioner", "styling", "hair dryer", "straightener", "curling iron",
			"hair spray", "mousse", "gel", "brush", "comb", "hair color", "hair mask"}},
		{Fragrance, []string{"perfume", "cologne", "fragrance", "scent", "eau de toilette", "eau de parfum",
			"body spray", "mist", "essential oil", "diffuser", "candle"}},

		// Sports & outdoors
		{Fitness, []string{"fitness", "exercise", "workout", "training", "gym", "weight", "dumbbell", "treadmill",
			"elliptical", "yoga mat", "resistance band", "kettlebell", "home gym"}},
		{OutdoorRecreation, []string{"outdoor", "camping", "hiking", "backpack", "tent", "sleeping bag", "fishing",
			"hunting", "kayak", "canoe", "paddle", "binocular", "compass", "grill"}},
		{SportsEquipment, []string{"sports", "basketball", "football", "soccer", "baseball", "tennis", "golf",
			"racquet", "bat", "ball", "glove", "helmet", "protective gear", "team sport"}},
	}
}

func builtinMainKeywords() []KeywordGroup {
	return []KeywordGroup{
		{Electronics, []string{"electronics", "tech", "gadget", "device", "electronic", "technology", "digital",
			"battery", "wireless", "portable", "smart device", "consumer electronics"}},
		{Clothing, []string{"clothing", "apparel", "fashion", "wear", "clothes", "outfit", "garment", "wardrobe",
			"attire", "dress", "collection", "style", "designer", "fabric", "textile"}},
		{HomeGarden, []string{"home", "house", "garden", "interior", "domestic", "household", "living", "residence",
			"decor", "indoor", "housewares", "furnishing", "homewares", "patio"}},
		{BeautyPersonalCare, []string{"beauty", "personal care", "cosmetic", "grooming", "skincare", "hygiene",
			"self-care", "toiletry", "bath", "shower", "salon"}},
		{SportsOutdoors, []string{"sport", "outdoor", "athletic", "recreation", "activity", "exercise", "fitness",
			"adventure", "leisure", "equipment", "gear", "hobby"}},
		{BooksMedia, []string{"book", "ebook", "reading", "magazine", "media", "literature", "novel", "textbook",
			"comic", "publication", "audiobook", "journal", "biography", "fiction", "non-fiction"}},
		{FoodGrocery, []string{"food", "grocery", "snack", "beverage", "drink", "edible", "ingredient", "meal",
			"cooking", "kitchen", "pantry", "gourmet", "organic", "natural", "fresh"}},
		{Automotive, []string{"car", "auto", "vehicle", "automotive", "truck", "motorcycle", "part", "accessory",
			"maintenance", "repair", "motor", "engine", "tire", "oil", "battery"}},
		{HealthWellness, []string{"health", "wellness", "medical", "supplement", "vitamin", "nutrition", "remedy",
			"medicine", "healthcare", "diet", "herbal", "mineral", "natural remedy"}},
		{ToysGames, []string{"toy", "game", "play", "puzzle", "entertainment", "board game", "card game",
			"educational toy", "action figure", "doll", "construction toy", "outdoor toy"}},
	}
}
