package llm

// WordTranslationPrompt instructs the model to translate caption tokens one
// for one so timings can be carried over unchanged.
const WordTranslationPrompt = `You translate video caption words.
The user sends JSON: {"target_language": "<language>", "words": ["w1", "w2", ...]}.
Translate every entry of "words" into the target language independently, keeping the order.
Return exactly one output entry per input entry. Keep punctuation attached to its word.
If a word has no translation (names, numbers, interjections), return it unchanged.
Respond with JSON only: {"translations": ["t1", "t2", ...]}.`
