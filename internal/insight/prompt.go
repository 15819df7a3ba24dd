package insight

// classificationPrompt instructs the vision model to describe one product
// photo as a strict JSON object.
const classificationPrompt = `You are a retail product photo analyst. You will receive one photograph of a retail product. Respond with JSON only, using exactly these fields:

{
  "role": "front" | "back" | "side" | "other",
  "brand": "brand name printed on the packaging, or \"unknown\"",
  "product": "product name",
  "variant": "flavor/scent/shade variant, or empty",
  "size": "printed size or volume, e.g. \"1.4 fl oz\", or empty",
  "category": "taxonomy path, segments joined by \" > \"",
  "extracted_text": "all legible text on the packaging",
  "description": "one-sentence visual description (packaging form, composition, background)",
  "color": "dominant packaging color, one word",
  "confidence": 0.0-1.0 confidence in the role assignment
}

"front" means the primary display panel with the brand logo and product name. "back" means the information panel with ingredients, nutrition or supplement facts, directions, or a barcode. "side" means an angled or lateral view. Use "other" when unsure.`
