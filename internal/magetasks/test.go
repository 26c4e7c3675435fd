package magetasks

// TestAll runs every test. The executor and procgroup tests spawn bash
// scripts, so bash must be on PATH.
func TestAll() error {
	return goTest("Tests", "all tests passed")
}

// TestCoverage runs the tests with a coverage profile and prints the summary.
func TestCoverage() error {
	if err := goTest("Test Coverage", "coverage written to coverage.out", "-coverprofile=coverage.out"); err != nil {
		return err
	}
	return Run("Coverage", "go", "tool", "cover", "-func=coverage.out")
}

// TestRace runs the tests under the race detector.
func TestRace() error {
	return goTest("Race Detector", "no races detected", "-race")
}

func goTest(title, success string, flags ...string) error {
	args := append([]string{"test"}, flags...)
	args = append(args, "./...")
	if err := Run(title, "go", args...); err != nil {
		return err
	}
	PrintSuccess(success)
	return nil
}
