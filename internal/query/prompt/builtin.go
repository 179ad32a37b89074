package prompt

// DefaultName is the template used when no other is selected.
const DefaultName = "default"

const defaultInstructions = `Transform the following transcribed speech into a structured query for a fashion e-commerce API.
The result should be a simple JSON object that captures the key product requirements.
Descriptions for the products should be concise and to the point, avoid adding properties like same as the image, just use the color of the product in the image, descriptions cant be FC Barcelona T-shirt, FC Barcelona Jersey, etc.
For clothing items, extract: product type, color, price range if mentioned, and any other relevant attributes.
If the user mentions modifications to items shown in the image, make those changes explicit in the query.
If the user says something like I want this with the same color, make that change explicit in the query after watching the product color on the image.
Focus only on actionable shopping criteria and ignore conversational elements.

Transcribed text: {{.Transcript}}

Return ONLY a valid JSON object with no additional explanation, fields or text.
The JSON should be formatted as follows:
` + "```json" + `
{  "items": [    {"description": "string", "max_price": number},    {"description": "string", "max_price": number}  ]}
` + "```"

const fashionInstructions = `Transform the following transcribed speech into a structured query for a fashion e-commerce API.
The result should be a simple JSON object that captures the key product requirements.

Guidelines:
1. For clothing items, extract: product type, color, price range, size, and any other relevant attributes.
2. If the user mentions modifications to items shown in the image, make those changes explicit in the query.
3. If the user mentions relative pricing (e.g., "cheap", "affordable", "expensive"), convert to approximate price ranges.
4. Capture style descriptions (e.g., "casual", "formal", "vintage") as attributes.
5. If multiple items are mentioned, include them as separate entries in an "items" array.
6. Focus only on actionable shopping criteria and ignore conversational elements.

Transcribed text: {{.Transcript}}

Return ONLY a valid JSON object with no additional explanation or text.`

const clothingInstructions = `Transform the following transcribed speech about clothing into a structured query for a fashion e-commerce API.
The result should be a simple JSON object that captures the key clothing requirements.

For clothing items, extract and structure the following information if mentioned:
- product_type: The specific type of clothing (e.g., "shirt", "dress", "jeans")
- color: Preferred color(s)
- price_range: Convert mentions like "cheap" to {"min": 0, "max": 30}
- size: Any size specifications
- material: Fabric preferences (e.g., "cotton", "silk")
- style: Style descriptions (e.g., "casual", "formal")
- fit: Fit preferences (e.g., "slim", "loose", "regular")
- brand: Any mentioned brands
- occasion: What the item is for (e.g., "work", "party")

If the user mentions modifications to items shown in the image, prioritize those changes in the query.
If multiple items are mentioned, include them as separate entries in an "items" array.

Transcribed text: {{.Transcript}}

Return ONLY a valid JSON object with no additional explanation or text.`

func builtins() []Template {
	return []Template{
		{Name: DefaultName, Description: "Item list with description and max_price", Instructions: defaultInstructions},
		{Name: "fashion_ecommerce", Description: "General fashion attributes", Instructions: fashionInstructions},
		{Name: "clothing", Description: "Detailed clothing attributes", Instructions: clothingInstructions},
	}
}
