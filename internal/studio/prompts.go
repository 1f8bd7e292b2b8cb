package studio

import "fmt"

// TranscribeInstruction accompanies uploaded audio in a batch transcription request.
const TranscribeInstruction = "Please transcribe this audio accurately in Bangla. " +
	"Maintain the speaker's tone and context. Only return the transcript."

// LiveInstruction is the system instruction for live transcription sessions.
const LiveInstruction = "You are a specialized Bangla transcription engine. " +
	"Only transcribe the user's audio input. Do not provide any conversational responses or audio output. " +
	"Output exactly what is being said in Bangla script."

var promptTemplates = map[ContentType]string{
	ContentTitle: `Based on this transcript: "%s", generate 10 catchy, viral-worthy video titles in Bangla. ` +
		`Format them as a numbered list.`,
	ContentThumbnail: `Based on this transcript: "%s", suggest 5 high-impact short text ideas for a video ` +
		`thumbnail in Bangla. Each suggestion should be very short (max 3-4 words).`,
	ContentFacebook: `Based on this transcript: "%s", write an engaging Facebook post caption in a mix of ` +
		`Bangla and English (Banglish style). Include relevant emojis and hashtags.`,
	ContentYouTube: `Based on this transcript: "%s", write a detailed YouTube video description in Bangla. ` +
		`Include a summary, key points covered, and common hashtags.`,
}

// Prompt renders the generation prompt for key.
func Prompt(key ContentType, transcript string) (string, error) {
	tmpl, ok := promptTemplates[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, key)
	}
	return fmt.Sprintf(tmpl, transcript), nil
}
