package game

import "math/rand"

// Topics is the pool of discussion prompts a round's topic is drawn from.
var Topics = []string{
	"What's the best topping for pizza?",
	"If you could have any superpower, what would it be?",
	"What's your favorite movie and why?",
	"Tell a funny story from your childhood.",
	"If you could live in any time period, when would it be?",
	"What's your unpopular opinion?",
	"What's the worst advice you've ever received?",
	"If you could master any skill instantly, what would it be?",
	"Prove that you are not an AI, but a human being. It is an all-out war; if you are voted as an AI, you will be killed.",
}

// Personas is the pool of descriptive traits assigned to agents.
var Personas = []string{
	"slightly sarcastic",
	"very cheerful",
	"inquisitive",
	"quiet and observant",
	"enthusiastic",
	"analytical",
	"humorous",
	"philosophical",
}

// RandomTopic picks a topic from the pool using the provided source.
func RandomTopic(rng *rand.Rand) string {
	return Topics[rng.Intn(len(Topics))]
}

// RandomTopicExcluding picks a topic different from prev when the pool
// allows it, so consecutive rounds don't repeat a prompt.
func RandomTopicExcluding(rng *rand.Rand, prev string) string {
	if len(Topics) < 2 {
		return Topics[0]
	}
	for {
		t := Topics[rng.Intn(len(Topics))]
		if t != prev {
			return t
		}
	}
}

// RandomPersona picks a persona from the pool using the provided source.
func RandomPersona(rng *rand.Rand) string {
	return Personas[rng.Intn(len(Personas))]
}
