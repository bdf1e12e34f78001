package analysis

// systemInstruction frames the model as the quality gate of the upload form.
const systemInstruction = `You are a quality control assistant for a college Lost and Found system. Your primary job is to ensure only real photos of physical lost items are uploaded. You must detect and flag AI-generated or synthetic images.`

// analysisPrompt is the shared instruction sent with every image.
const analysisPrompt = `Analyze this image. First, determine if it is a real-world photograph of a lost item. If it is AI-generated, synthetic, or a digitally created illustration, flag it using the isLikelyAI field. Otherwise, provide a structured description.

Return ONLY valid JSON with these fields:
- "name": a short, concise title for the found item (e.g. "Blue Nike Water Bottle")
- "description": a detailed description including color, brand, condition and distinctive features
- "category": one of Electronics, Clothing, Accessories, Stationery, Bags, Keys, Documents, Other
- "tags": 5-7 lowercase keywords that help search for this item
- "suggestedLocation": the kind of place suggested by the background if visible (e.g. "Library desk", "Outdoor bench"), otherwise ""
- "isLikelyAI": true if the image appears AI-generated, synthetic or non-photographic, false for a real photo of a physical object

Do not include any text before or after the JSON and do not use markdown code blocks.`

// Field descriptions shared by the response schemas of every backend.
const (
	nameDescription        = "A short, concise title for the found item (e.g., 'Blue Nike Water Bottle')."
	descriptionDescription = "A detailed description of the item including color, brand, condition, and distinctive features."
	categoryDescription    = "Category of the item (e.g., Electronics, Clothing, Accessories, Stationery)."
	tagsDescription        = "5-7 keywords to help search for this item."
	locationDescription    = "Infer a possible context or type of location based on the background if visible (e.g., 'Library desk', 'Outdoor bench'), otherwise leave empty."
	isLikelyAIDescription  = "True if the image appears to be AI-generated, synthetic, or non-photographic. False if it looks like a real-world photo of a physical object."
)

// requiredFields lists the schema fields every response must carry.
var requiredFields = []string{"name", "description", "category", "tags", "isLikelyAI"}
