package sentiment

type entry struct {
	polarity     float64
	subjectivity float64
}

// lexicon is a finance-leaning polarity lexicon; values follow the
// pattern-style [-1,1] polarity and [0,1] subjectivity scale.
var lexicon = map[string]entry{
	"good":        {0.7, 0.6},
	"great":       {0.8, 0.75},
	"excellent":   {1.0, 1.0},
	"awesome":     {1.0, 1.0},
	"amazing":     {0.6, 0.9},
	"best":        {1.0, 0.3},
	"better":      {0.5, 0.5},
	"positive":    {0.23, 0.55},
	"optimistic":  {0.5, 0.6},
	"happy":       {0.8, 1.0},
	"love":        {0.5, 0.6},
	"like":        {0.2, 0.3},
	"strong":      {0.43, 0.73},
	"stronger":    {0.45, 0.7},
	"bullish":     {0.6, 0.5},
	"rally":       {0.5, 0.4},
	"rallies":     {0.5, 0.4},
	"surge":       {0.5, 0.4},
	"surges":      {0.5, 0.4},
	"soar":        {0.6, 0.5},
	"soars":       {0.6, 0.5},
	"gain":        {0.4, 0.3},
	"gains":       {0.4, 0.3},
	"growth":      {0.3, 0.2},
	"profit":      {0.4, 0.2},
	"profits":     {0.4, 0.2},
	"beat":        {0.3, 0.3},
	"beats":       {0.3, 0.3},
	"upgrade":     {0.4, 0.3},
	"upgraded":    {0.4, 0.3},
	"record":      {0.2, 0.2},
	"win":         {0.8, 0.4},
	"wins":        {0.8, 0.4},
	"success":     {0.3, 0.4},
	"successful":  {0.75, 0.95},
	"innovative":  {0.5, 0.6},
	"recover":     {0.3, 0.3},
	"recovery":    {0.3, 0.3},
	"boom":        {0.5, 0.5},
	"moon":        {0.4, 0.6},
	"bad":         {-0.7, 0.67},
	"worse":       {-0.4, 0.6},
	"worst":       {-1.0, 1.0},
	"terrible":    {-1.0, 1.0},
	"awful":       {-1.0, 1.0},
	"poor":        {-0.4, 0.6},
	"negative":    {-0.3, 0.4},
	"pessimistic": {-0.5, 0.6},
	"sad":         {-0.5, 1.0},
	"hate":        {-0.8, 0.9},
	"fear":        {-0.5, 0.7},
	"fears":       {-0.5, 0.7},
	"panic":       {-0.6, 0.8},
	"weak":        {-0.375, 0.625},
	"weaker":      {-0.4, 0.6},
	"bearish":     {-0.6, 0.5},
	"crash":       {-0.8, 0.5},
	"crashes":     {-0.8, 0.5},
	"plunge":      {-0.7, 0.4},
	"plunges":     {-0.7, 0.4},
	"slump":       {-0.6, 0.4},
	"drop":        {-0.3, 0.3},
	"drops":       {-0.3, 0.3},
	"fall":        {-0.3, 0.3},
	"falls":       {-0.3, 0.3},
	"decline":     {-0.35, 0.3},
	"declines":    {-0.35, 0.3},
	"loss":        {-0.4, 0.3},
	"losses":      {-0.4, 0.3},
	"miss":        {-0.3, 0.3},
	"misses":      {-0.3, 0.3},
	"downgrade":   {-0.4, 0.3},
	"downgraded":  {-0.4, 0.3},
	"recession":   {-0.6, 0.4},
	"inflation":   {-0.2, 0.2},
	"risk":        {-0.2, 0.3},
	"risky":       {-0.4, 0.6},
	"lawsuit":     {-0.4, 0.3},
	"fraud":       {-0.8, 0.6},
	"scam":        {-0.8, 0.7},
	"bankruptcy":  {-0.9, 0.4},
	"bankrupt":    {-0.9, 0.4},
	"layoffs":     {-0.5, 0.3},
	"crisis":      {-0.6, 0.5},
	"volatile":    {-0.2, 0.5},
	"uncertain":   {-0.2, 0.6},
	"dump":        {-0.5, 0.5},
}

var negations = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"neither": true,
	"nor":     true,
	"isn't":   true,
	"aren't":  true,
	"wasn't":  true,
	"don't":   true,
	"doesn't": true,
	"didn't":  true,
	"won't":   true,
	"can't":   true,
	"without": true,
}

var intensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.2,
	"extremely":  1.5,
	"super":      1.3,
	"highly":     1.3,
	"incredibly": 1.4,
	"so":         1.2,
	"slightly":   0.6,
	"somewhat":   0.7,
	"barely":     0.5,
}
