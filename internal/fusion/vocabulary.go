package fusion

// ProductVocabulary maps shopping categories to the product nouns a captioner
// or detector is likely to name.
var ProductVocabulary = map[string][]string{
	"electronics": {"phone", "smartphone", "laptop", "computer", "tablet", "camera", "headphones", "headphone", "earphones", "earbuds", "speaker", "watch", "smartwatch", "tv", "monitor", "keyboard", "mouse"},
	"clothing":    {"shirt", "tshirt", "dress", "pants", "jeans", "jacket", "coat", "shoes", "shoe", "sneakers", "boots", "hat", "cap"},
	"home":        {"chair", "table", "sofa", "bed", "lamp", "cushion", "pillow", "curtain", "rug", "vase", "clock"},
	"kitchen":     {"bottle", "cup", "mug", "plate", "bowl", "spoon", "fork", "knife", "pot", "pan"},
	"sports":      {"ball", "football", "basketball", "tennis", "racket", "bike", "bicycle", "weights", "dumbbells"},
	"books":       {"book", "notebook", "journal", "magazine", "newspaper"},
	"toys":        {"toy", "doll", "car", "truck", "puzzle", "game"},
	"beauty":      {"perfume", "lipstick", "makeup", "brush", "mirror", "cream", "lotion"},
}

// KnownBrands are lifted to the front of text candidates.
var KnownBrands = []string{
	"apple", "samsung", "sony", "lg", "nike", "adidas", "canon", "nikon", "hp", "dell",
	"lenovo", "asus", "acer", "microsoft", "google", "amazon", "xiaomi", "oppo", "vivo",
	"oneplus", "huawei", "realme", "nokia", "boat", "jbl", "bose", "puma", "philips",
}

// DefaultStopWords are removed from caption keywords and OCR tokens.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "of", "is", "are", "was", "it", "its", "this", "that",
	"these", "those", "to", "for", "from", "by", "as", "be", "has", "have", "some", "very",
	"on", "in", "at", "with", "next", "near", "sitting", "lying", "standing", "holding",
	"pair", "couple", "bunch", "set", "close", "closeup", "up", "picture", "image", "photo",
	"view", "shot", "front", "side", "background",
}

// DefaultTemplatePhrases are captioner boilerplate stripped before keywords are read.
var DefaultTemplatePhrases = []string{
	"a picture of", "a close up of", "a close-up of", "a closeup of", "an image of",
	"a photo of", "a photograph of", "a view of", "there is", "there are", "this is",
	"arafed", "araffe", "arafe", "on a white background", "on a table",
}

// spatialWords end a caption's product phrase once a keyword has been kept.
var spatialWords = map[string]bool{
	"on": true, "in": true, "at": true, "next": true, "near": true, "with": true,
	"sitting": true, "lying": true, "standing": true, "beside": true, "under": true,
}

func vocabularySet(extra []string) map[string]bool {
	set := make(map[string]bool)

	for _, words := range ProductVocabulary {
		for _, w := range words {
			set[fold(w)] = true
		}
	}

	for _, w := range extra {
		set[fold(w)] = true
	}

	return set
}

func wordSet(base, extra []string) map[string]bool {
	set := make(map[string]bool, len(base)+len(extra))

	for _, w := range base {
		set[fold(w)] = true
	}

	for _, w := range extra {
		set[fold(w)] = true
	}

	return set
}
