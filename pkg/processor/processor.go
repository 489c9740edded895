package processor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kamillle/rag-sample/internal/models"
)

type ProcessorConfig struct {
	// ChunkSize is the soft upper bound of a node's length in runes.
	ChunkSize int
}

// Processor splits documents into nodes. The nodes of one document never
// overlap and concatenate back to the document's content.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Process(docs []models.Document) []models.Node {
	var nodes []models.Node
	for _, doc := range docs {
		nodes = append(nodes, p.Split(doc)...)
	}
	return nodes
}

// Split chunks a single document.
func (p *Processor) Split(doc models.Document) []models.Node {
	chunks := p.splitIntoChunks(doc.Content)

	nodes := make([]models.Node, 0, len(chunks))
	for i, chunk := range chunks {
		nodes = append(nodes, models.Node{
			ID:         NodeID(doc.Source, i),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Position:   i,
			Text:       chunk,
		})
	}
	return nodes
}

// NodeID derives a stable identifier from a node's source and position.
func NodeID(source string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("file:///%s#%d", source, position))).String()
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, segment := range splitIntoSegments(text) {
		for _, piece := range p.fitPieces(segment) {
			pieceLen := utf8.RuneCountInString(piece)

			// Only flush when the current chunk carries real text, so
			// whitespace never ends up in a node of its own.
			if currentLen+pieceLen > p.config.ChunkSize && !isBlank(current.String()) {
				chunks = append(chunks, current.String())
				current.Reset()
				currentLen = 0
			}

			current.WriteString(piece)
			currentLen += pieceLen
		}
	}

	if current.Len() > 0 {
		if isBlank(current.String()) && len(chunks) > 0 {
			chunks[len(chunks)-1] += current.String()
		} else if !isBlank(current.String()) {
			chunks = append(chunks, current.String())
		}
	}

	return chunks
}

// fitPieces breaks a segment longer than ChunkSize into sentences, and a
// sentence still longer than ChunkSize into fixed-size rune slices.
func (p *Processor) fitPieces(segment string) []string {
	if utf8.RuneCountInString(segment) <= p.config.ChunkSize {
		return []string{segment}
	}

	var pieces []string
	for _, sentence := range splitIntoSentences(segment) {
		runes := []rune(sentence)
		for len(runes) > p.config.ChunkSize {
			pieces = append(pieces, string(runes[:p.config.ChunkSize]))
			runes = runes[p.config.ChunkSize:]
		}
		if len(runes) > 0 {
			pieces = append(pieces, string(runes))
		}
	}
	return pieces
}

// splitIntoSegments cuts text into Q&A blocks when the document is a
// question/answer log, otherwise into paragraphs. Separators stay attached
// to the preceding segment.
func splitIntoSegments(text string) []string {
	lines := strings.SplitAfter(text, "\n")

	hasQuestions := false
	for _, line := range lines {
		if isQuestionLine(line) {
			hasQuestions = true
			break
		}
	}

	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		if line == "" {
			continue
		}

		if hasQuestions {
			if isQuestionLine(line) {
				flush()
			}
			current.WriteString(line)
			continue
		}

		// Paragraph mode: a blank line closes the paragraph it follows.
		if isBlank(line) {
			current.WriteString(line)
			continue
		}
		if current.Len() > 0 && isBlank(lastLine(current.String())) {
			flush()
		}
		current.WriteString(line)
	}
	flush()

	return segments
}

func isQuestionLine(line string) bool {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	for _, prefix := range []string{"Q.", "Q:", "Q．", "Q：", "Ｑ．", "Ｑ."} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	trimmed := strings.TrimSuffix(s, "\n")
	if i := strings.LastIndex(trimmed, "\n"); i >= 0 {
		return trimmed[i+1:] + "\n"
	}
	return s
}

func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		switch r {
		case '。', '！', '？', '\n':
			sentences = append(sentences, current.String())
			current.Reset()
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] == ' ' {
				current.WriteRune(' ')
				i++
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	// Add any remaining text
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
