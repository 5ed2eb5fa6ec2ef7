package ownership

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// ownershipBins discretizes ownership into ensemble.NewRandomForest's
// classification label space; golearn ships no regression forest, so
// ownership is predicted as a bin and returned as that bin's midpoint.
const (
	ownershipBinCount = 20
	ownershipBinWidth = 1.0 / ownershipBinCount
)

// SalarySkillEstimator predicts ownership from (salary, skill) via a
// golearn random forest, binning the continuous ownership label the way
// internal/analytics/ml.Predictor bins ROI for its random-forest target
// (spec.md §4.4.3: "salary-skill regression forest").
type SalarySkillEstimator struct {
	treeCount int
	maxDepth  int
	forest    base.Classifier
	ready     bool
}

func NewSalarySkillEstimator(treeCount, maxDepth int) *SalarySkillEstimator {
	if treeCount <= 0 {
		treeCount = 50
	}
	if maxDepth <= 0 {
		maxDepth = 4
	}
	return &SalarySkillEstimator{treeCount: treeCount, maxDepth: maxDepth}
}

func (e *SalarySkillEstimator) Name() string { return "salary_skill_forest" }

func (e *SalarySkillEstimator) Fit(rows []TrainingRow) error {
	if len(rows) < 10 {
		e.ready = false
		return nil
	}

	path, err := writeTrainingCSV(rows)
	if err != nil {
		return dfserrors.Wrap(dfserrors.KindEstimatorUnderdetermined, "writing salary-skill training csv", nil, err)
	}
	defer os.Remove(path)

	dataset, err := base.ParseCSVToInstances(path, true)
	if err != nil {
		return dfserrors.Wrap(dfserrors.KindEstimatorUnderdetermined, "parsing salary-skill training csv", nil, err)
	}

	forest := ensemble.NewRandomForest(e.treeCount, e.maxDepth)
	forest.Fit(dataset)

	e.forest = forest
	e.ready = true
	return nil
}

func (e *SalarySkillEstimator) Predict(driver dfstypes.Driver, _ string) float64 {
	if !e.ready || e.forest == nil {
		return 0
	}

	path, err := writeSingleRowCSV(float64(driver.Salary), driver.Archetype.Skill)
	if err != nil {
		return 0
	}
	defer os.Remove(path)

	row, err := base.ParseCSVToInstances(path, true)
	if err != nil {
		return 0
	}

	predictions, err := e.forest.Predict(row)
	if err != nil {
		return 0
	}

	label := base.GetClass(predictions, 0)
	bin, err := strconv.Atoi(label)
	if err != nil {
		return 0
	}
	return clamp01((float64(bin) + 0.5) * ownershipBinWidth)
}

func (e *SalarySkillEstimator) Ready() bool { return e.ready }

func ownershipToBin(ownership float64) int {
	bin := int(clamp01(ownership) / ownershipBinWidth)
	if bin >= ownershipBinCount {
		bin = ownershipBinCount - 1
	}
	return bin
}

func writeTrainingCSV(rows []TrainingRow) (string, error) {
	tmp, err := os.CreateTemp("", "ownership_salaryskill_*.csv")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	w := csv.NewWriter(tmp)
	defer w.Flush()

	if err := w.Write([]string{"salary", "skill", "label"}); err != nil {
		return "", err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatFloat(float64(r.Salary), 'f', -1, 64),
			strconv.FormatFloat(r.Skill, 'f', -1, 64),
			strconv.Itoa(ownershipToBin(r.ActualOwnership)),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return tmp.Name(), w.Error()
}

func writeSingleRowCSV(salary, skill float64) (string, error) {
	tmp, err := os.CreateTemp("", "ownership_salaryskill_predict_*.csv")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	w := csv.NewWriter(tmp)
	defer w.Flush()

	if err := w.Write([]string{"salary", "skill", "label"}); err != nil {
		return "", err
	}
	rec := []string{
		strconv.FormatFloat(salary, 'f', -1, 64),
		strconv.FormatFloat(skill, 'f', -1, 64),
		"0",
	}
	if err := w.Write(rec); err != nil {
		return "", err
	}
	w.Flush()
	return tmp.Name(), w.Error()
}
