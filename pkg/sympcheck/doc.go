// Package sympcheck ranks probable medical conditions for a set of symptom
// codes using a random forest trained on a symptom/disease dataset.
//
// Quick start:
//
//	c, err := sympcheck.New(sympcheck.WithArtifactPath("models/disease.model"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	for _, p := range c.Predict(ctx, "fever", "cough") {
//	    fmt.Println(p.Condition, p.Probability)
//	}
//
// The first prediction loads the stored model, or trains and stores one
// when none exists. Call Warmup at startup to move that cost off the first
// request. When no dataset can be fetched the model is trained on random
// synthetic data; Status reports this as Synthetic, and such a model has
// no diagnostic value.
//
// The Checker is safe for concurrent use. Create once, reuse across
// requests. Results are informational and not a medical diagnosis.
package sympcheck
