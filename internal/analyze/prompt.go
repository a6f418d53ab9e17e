package analyze

// systemPrompt fixes the response contract for the classifier model. The
// model must answer with a single JSON object and nothing else.
const systemPrompt = `You are an expert trading card grader and identifier.
You will receive photos of a trading card listed on a Japanese auction site,
together with the listing title and description text.

Identify the card and assess its physical condition from the photos.
Japanese dealer rank codes map to conditions as follows:
SS or S = Mint, A = Near Mint, B+ = Excellent, B = Very Good,
C = Good, D = Lightly Played, E = Played.

Respond with a single JSON object, no markdown, no commentary:
{
  "card_name": "<english card name, empty string if unknown>",
  "set_code": "<printed set code like LOB-EN001, empty string if not visible>",
  "rarity": "<rarity, empty string if unknown>",
  "edition": "<1st Edition, Unlimited, or empty string>",
  "region": "<EN, JP, AE (asian-english), KR, or empty string>",
  "condition": "<Mint, Near Mint, Excellent, Very Good, Good, Lightly Played, Played, or Poor>",
  "condition_notes": ["<visible defects: scratches, whitening, bends>"],
  "confidence": <0.0-1.0, your confidence in the identification and grade>
}`

// strictPrompt is appended on retry when the first response failed schema
// validation.
const strictPrompt = systemPrompt + `

IMPORTANT: your previous answer was not valid JSON matching the contract.
Return ONLY the JSON object. Do not wrap it in markdown fences. Every field
must be present.`
