package sentiment

// afinn holds word polarities on the -5..5 scale
var afinn = map[string]int{
	// positive
	"admire": 3, "amazing": 4, "awesome": 4, "beautiful": 3, "best": 3, "better": 2,
	"brilliant": 4, "calm": 2, "celebrate": 3, "charming": 3, "cheerful": 2, "clean": 2,
	"comfortable": 2, "cool": 1, "delight": 3, "delightful": 3, "easy": 1, "effective": 2,
	"elegant": 2, "enjoy": 2, "enjoyable": 2, "excellent": 3, "excited": 3, "exciting": 3,
	"fabulous": 4, "fair": 2, "fantastic": 4, "favorite": 2, "fine": 2, "fun": 4,
	"glad": 3, "good": 3, "gorgeous": 3, "great": 3, "happy": 3, "helpful": 2,
	"hope": 2, "hopeful": 2, "impressive": 3, "improve": 2, "improved": 2, "incredible": 4,
	"joy": 3, "kind": 2, "like": 2, "liked": 2, "love": 3, "loved": 3,
	"lovely": 3, "loving": 2, "magnificent": 4, "marvelous": 3, "nice": 3, "outstanding": 5,
	"perfect": 3, "pleasant": 3, "pleased": 3, "positive": 2, "promising": 2, "recommend": 2,
	"reliable": 2, "remarkable": 2, "satisfied": 2, "smart": 1, "success": 2, "successful": 3,
	"superb": 5, "terrific": 4, "thank": 2, "thanks": 2, "useful": 2, "win": 4,
	"winner": 4, "wonderful": 4, "wow": 4,

	// negative
	"afraid": -2, "angry": -3, "annoyed": -2, "annoying": -2, "anxious": -2, "ashamed": -2,
	"awful": -3, "bad": -3, "boring": -3, "broken": -1, "careless": -2, "complain": -2,
	"confused": -2, "crap": -3, "cruel": -3, "damage": -3, "damaged": -3, "dangerous": -2,
	"dead": -3, "disappointed": -2, "disappointing": -2, "disaster": -2, "disgusting": -3, "dislike": -2,
	"dull": -2, "error": -2, "fail": -2, "failed": -2, "failure": -2, "fear": -2,
	"frustrated": -2, "frustrating": -2, "hate": -3, "hated": -3, "horrible": -3, "hurt": -2,
	"ill": -2, "lose": -3, "loss": -3, "lost": -3, "mess": -2, "miserable": -3,
	"nasty": -3, "pain": -2, "painful": -2, "pathetic": -2, "poor": -2, "problem": -2,
	"sad": -2, "scary": -2, "slow": -2, "stupid": -2, "terrible": -3, "threat": -2,
	"ugly": -3, "unhappy": -2, "useless": -2, "waste": -1, "weak": -2, "worried": -3,
	"worse": -3, "worst": -3, "wrong": -2,
}

// negators flip the polarity of the word that follows them
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nobody": true, "nothing": true,
	"neither": true, "nor": true, "cannot": true, "can't": true, "don't": true, "doesn't": true,
	"didn't": true, "isn't": true, "aren't": true, "wasn't": true, "weren't": true, "won't": true,
	"wouldn't": true, "shouldn't": true, "couldn't": true, "hardly": true,
}

// positiveTerms and negativeTerms drive the part-of-speech heuristic
var positiveTerms = toSet(
	"good", "great", "excellent", "amazing", "wonderful", "fantastic", "best", "love", "loved", "loving",
	"beautiful", "perfect", "awesome", "brilliant", "outstanding", "superb", "exceptional", "incredible",
	"magnificent", "marvelous", "pleasant", "delightful", "enjoyable", "happy", "glad", "pleased",
	"satisfied", "terrific", "fabulous", "splendid", "impressive", "remarkable", "positive", "advantage",
	"benefit", "success", "successful", "win", "winning", "winner", "better", "improvement", "improved",
	"exciting", "excited", "enthusiasm", "enthusiastic", "optimistic", "hopeful", "promising", "favorable",
)

var negativeTerms = toSet(
	"bad", "terrible", "awful", "horrible", "poor", "worst", "hate", "hated", "hating", "ugly", "disgusting",
	"disappointing", "disappointed", "disappointment", "fail", "failed", "failure", "wrong", "problem",
	"problems", "issue", "issues", "error", "errors", "difficult", "difficulty", "hard", "impossible",
	"negative", "unfortunate", "sad", "unhappy", "angry", "frustrated", "frustrating", "annoying", "annoyed",
	"concern", "concerned", "worried", "worry", "fear", "afraid", "scary", "dangerous", "risk", "threat",
	"damage", "damaged", "harm", "harmful", "worse", "loss", "lost", "losing", "loser", "decline", "declined",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
