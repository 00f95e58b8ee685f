package engine

// Problem is one entry of the fixed problem set. Input is fed to the sandbox
// on stdin and Expected is compared with its trimmed stdout.
type Problem struct {
	ID       int
	Prompt   string
	Input    string
	Expected string
}

const ProblemCount = 5

var Problems = [ProblemCount]Problem{
	{ID: 1, Prompt: "두 정수 A와 B를 입력받은 다음, A+B를 출력하는 프로그램을 작성하시오.", Input: "3 5", Expected: "8"},
	{ID: 2, Prompt: "세 정수 A, B, C를 입력받고, 그 중 가장 큰 값을 출력하는 프로그램을 작성하시오.", Input: "4 9 2", Expected: "9"},
	{ID: 3, Prompt: "정수 N이 주어질 때, 1부터 N까지의 합을 구하는 프로그램을 작성하시오.", Input: "10", Expected: "55"},
	{ID: 4, Prompt: "문자열 S가 주어졌을 때, S의 길이를 출력하는 프로그램을 작성하시오.", Input: "codive", Expected: "6"},
	{ID: 5, Prompt: "두 정수 A와 B가 주어졌을 때, A와 B를 곱한 값을 출력하는 프로그램을 작성하시오.", Input: "6 7", Expected: "42"},
}

// ProblemByID returns the problem with the given 1-based id.
func ProblemByID(id int) (Problem, bool) {
	if id < 1 || id > ProblemCount {
		return Problem{}, false
	}
	return Problems[id-1], true
}
