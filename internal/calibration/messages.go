package calibration

func variant(c Category, key string, n, emoji string) Message {
	return Message{
		Category:   c,
		TitleKey:   "result." + key + ".title." + n,
		MessageKey: "result." + key + ".message." + n,
		Emoji:      emoji,
	}
}

// Textvarianten je Stufe. Die Übersetzungen liegen in internal/api/middleware/locales.
var messagePools = map[Category][]Message{
	CategoryNearIdentical: {
		variant(CategoryNearIdentical, "near_identical", "1", "👯"),
		variant(CategoryNearIdentical, "near_identical", "2", "🪞"),
		variant(CategoryNearIdentical, "near_identical", "3", "✨"),
	},
	CategoryStrongResemblance: {
		variant(CategoryStrongResemblance, "strong_resemblance", "1", "😍"),
		variant(CategoryStrongResemblance, "strong_resemblance", "2", "👨‍👧"),
		variant(CategoryStrongResemblance, "strong_resemblance", "3", "💞"),
	},
	CategoryClearFamily: {
		variant(CategoryClearFamily, "clear_family", "1", "👪"),
		variant(CategoryClearFamily, "clear_family", "2", "🧬"),
		variant(CategoryClearFamily, "clear_family", "3", "🏡"),
	},
	CategorySubtleResemblance: {
		variant(CategorySubtleResemblance, "subtle_resemblance", "1", "🔍"),
		variant(CategorySubtleResemblance, "subtle_resemblance", "2", "🌱"),
		variant(CategorySubtleResemblance, "subtle_resemblance", "3", "🙂"),
	},
	CategoryUniqueCharacter: {
		variant(CategoryUniqueCharacter, "unique_character", "1", "🌟"),
		variant(CategoryUniqueCharacter, "unique_character", "2", "🦄"),
		variant(CategoryUniqueCharacter, "unique_character", "3", "🎨"),
	},
}

// Messages liefert alle Varianten einer Stufe
func Messages(c Category) []Message {
	return append([]Message(nil), messagePools[c]...)
}
