// Package smogncv evaluates regressors on zero-inflated targets, such as
// daily wildfire ignition counts, with k-fold cross-validation that
// oversamples rare target values inside every training fold.
//
// Resampling is done per fold, after the split, so synthetic rows are
// built only from training rows and every test partition is scored as it
// was read.
//
// # Quick Start
//
//	ds, err := dataset.ReadFile("fires.xlsx", dataset.ReadOptions{Target: "fires"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ds, _, err = dataset.Preprocess(ds, dataset.DefaultNAPolicy())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := smogn.NewEngine(smogn.DefaultOptions(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cv, err := model_selection.NewCrossValidator(
//	    model_selection.WithFolds(10),
//	    model_selection.WithResampler(engine),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := cv.Evaluate(ctx, ds, func() (model.Model, error) {
//	    return ensemble.NewRandomForestRegressor(), nil
//	})
//	fmt.Println(res.Mean(), res.Std())
//
// # Packages
//
//   - dataset: tabular data with a column schema, CSV and XLSX loading, NA policy
//   - smogn: relevance, neighbour search and synthetic row generation
//   - sklearn/model_selection: KFold and the cross-validation harness
//   - sklearn/ensemble, sklearn/tree: random forest and CART regressors
//   - linear: ridge-capable linear regression
//   - metrics: regression metrics usable as CV scorers
//   - diagnostics: per-fold target distribution sinks (logs, plots)
//   - config: YAML run configuration
//   - cmd/smogncv: command line front end
package smogncv
