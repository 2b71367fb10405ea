package seedmodels

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"quiz-sense/internal/domain"

	"gopkg.in/yaml.v3"
)

// SeedQuestion is one question entry in the YAML seed file.
type SeedQuestion struct {
	Prompt string `yaml:"prompt"`
	Answer string `yaml:"answer"`
}

// SeedTopic groups the questions of one topic.
type SeedTopic struct {
	Topic     string         `yaml:"topic"`
	Questions []SeedQuestion `yaml:"questions"`
}

// SeedFile is the root of the seed document.
type SeedFile struct {
	Topics []SeedTopic `yaml:"topics"`
}

// Load reads a seed file from disk.
func Load(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a seed document. Unknown fields are rejected so typos do not
// silently drop questions.
func Parse(raw []byte) (*SeedFile, error) {
	var file SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &file, nil
}

// Questions converts the seed document into domain questions. Entries with an
// unknown topic or a blank prompt or answer are reported as errors.
func (f *SeedFile) Questions() ([]*domain.Question, error) {
	var questions []*domain.Question
	for _, st := range f.Topics {
		topic, ok := domain.ParseTopic(st.Topic)
		if !ok {
			return nil, domain.NewInvalidTopicError(st.Topic)
		}
		for i, sq := range st.Questions {
			prompt := strings.TrimSpace(sq.Prompt)
			answer := strings.TrimSpace(sq.Answer)
			if prompt == "" || answer == "" {
				return nil, fmt.Errorf("topic %s question %d needs a prompt and an answer", topic, i+1)
			}
			questions = append(questions, domain.NewQuestion(topic, prompt, answer))
		}
	}
	return questions, nil
}
