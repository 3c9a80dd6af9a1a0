package responder

// FallbackArtist supplies facts when an artist has none of its own.
const FallbackArtist = "Taylor Swift"

// AcknowledgmentPrefix opens every reaction reply.
const AcknowledgmentPrefix = "I know, right? "

// Tables holds the canned copy a Responder draws from.
type Tables struct {
	Facts     map[string][]string
	Reactions []string
	// Defaults are fmt templates taking the artist name as %[1]s.
	Defaults []string
}

// Keyword triggers, checked against lowercased input in this order.
var (
	factKeywords     = []string{"fact", "tell me about", "who is"}
	reactionKeywords = []string{"amazing", "wow", "awesome", "cool", "love"}
)

// DefaultTables returns the built-in copy.
func DefaultTables() Tables {
	return Tables{
		Facts: map[string][]string{
			"Taylor Swift": {
				"Taylor Swift has won 12 Grammy Awards throughout her career.",
				`Swift wrote her entire "Speak Now" album by herself, without co-writers.`,
				"Taylor Swift was named after James Taylor, the singer-songwriter.",
				`Swift has a cat named after the character Meredith Grey from "Grey's Anatomy".`,
				"She started her career as a country artist before transitioning to pop.",
			},
			"Beyoncé": {
				"Beyoncé has won 32 Grammy Awards, the most by any artist.",
				`Her visual album "Lemonade" was critically acclaimed for its artistic vision.`,
				"She was part of Destiny's Child before going solo.",
				`Beyoncé performed the voice of Nala in the 2019 remake of "The Lion King".`,
				`Her performance at Coachella 2018 was nicknamed "Beychella".`,
			},
			"BTS": {
				"BTS was the first K-pop group to present at the Grammy Awards.",
				"They have broken numerous YouTube records for video views in 24 hours.",
				`The group's name stands for "Bangtan Sonyeondan" in Korean, which translates to "Bulletproof Boy Scouts".`,
				"BTS addressed the United Nations General Assembly in 2018, 2021, and 2022.",
				"They have collaborated with artists like Halsey, Coldplay, and Megan Thee Stallion.",
			},
			"The Weeknd": {
				"The Weeknd's real name is Abel Makkonen Tesfaye.",
				"He was homeless at one point and slept on friends' couches before fame.",
				"His distinct hairstyle was partly inspired by artist Jean-Michel Basquiat.",
				`He boycotted the Grammys after "After Hours" received no nominations despite commercial success.`,
				"The Weeknd performed at the Super Bowl LV halftime show in 2021.",
			},
		},
		Reactions: []string{
			"That guitar solo was absolutely mind-blowing! 🎸✨",
			"The light show is spectacular right now!",
			"This crowd energy is incredible! Everyone's on their feet!",
			"What an amazing key change in this song!",
			"The drummer is absolutely killing it right now! 🥁",
			"That high note was perfect! Incredible vocal range!",
			"The band chemistry on stage is magical tonight.",
			"This breakdown is heavy! Can feel the bass!",
			"The choreography in this performance is flawless!",
			"Listen to the crowd singing along! Goosebumps!",
		},
		Defaults: []string{
			"I'm loving this %[1]s concert too! The energy is amazing!",
			"%[1]s is absolutely crushing it tonight!",
			"This is why %[1]s has such a devoted fanbase. What a performance!",
			"I'm here to enhance your concert experience! Ask me anything about %[1]s!",
			"Feel free to use the clap button to show your appreciation during the show!",
		},
	}
}

// factsFor returns the artist's facts, or the fallback artist's.
func (t Tables) factsFor(artist string) []string {
	if facts, ok := t.Facts[artist]; ok && len(facts) > 0 {
		return facts
	}
	return t.Facts[FallbackArtist]
}
