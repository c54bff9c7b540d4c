// internal/vision/prompt.go
package vision

// screenPrompt instructs the model to describe a phone screenshot as strict
// JSON matching agent.ScreenObservation. Coordinates are absolute pixels in
// the screenshot; elements the model cannot locate must be omitted rather
// than given (0,0).
const screenPrompt = `You are analyzing a screenshot of a mobile phone screen.
Respond with ONLY a JSON object, no prose, in exactly this shape:

{
  "description": "one or two sentences describing what is on screen",
  "is_login_screen": false,
  "has_popup": false,
  "primary_action": "label of the most significant button, or empty string",
  "elements": [
    {"description": "label or purpose", "x": 0, "y": 0, "kind": "button|text_field|link|icon|other"}
  ]
}

Rules:
- "is_login_screen" is true only if the screen asks for an email, username,
  password, or verification code.
- "has_popup" is true if a dialog, ad, or overlay covers the main content.
- "x" and "y" are the pixel coordinates of the element's center.
- Omit elements you cannot locate precisely. Never report (0,0).
- List interactive elements first, most prominent first.`
