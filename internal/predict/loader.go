package predict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/symptomcheck/internal/classifier"
	"github.com/Skufu/symptomcheck/internal/dataset"
)

// Sources locates the startup artifacts. When ClassifierURL is set the
// classifier is served remotely and ModelPath is ignored.
type Sources struct {
	DatasetPath   string
	ModelPath     string
	DecoderPath   string
	ClassifierURL string
	// ClassifierVersion names the model deployed behind ClassifierURL; it
	// scopes cache keys, so it should change on every redeploy.
	ClassifierVersion string
	Timeout           time.Duration
	// Serialize wraps the classifier so it is called by one request at a time.
	Serialize bool
}

// Load reads all artifacts and checks that they agree with each other. Any
// failure is an ArtifactLoad error and the service must not start.
func Load(ctx context.Context, src Sources, logger *logrus.Logger) (*Artifacts, error) {
	var (
		ds      *dataset.Dataset
		clf     classifier.Classifier
		decoder *classifier.LabelDecoder
		version string
	)

	if err := ctx.Err(); err != nil {
		return nil, artifactLoad("load cancelled", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		if ds, err = dataset.LoadFile(src.DatasetPath); err != nil {
			return artifactLoad("load dataset", err)
		}
		return nil
	})
	g.Go(func() error {
		if src.ClassifierURL != "" {
			remote, err := classifier.NewRemote(src.ClassifierURL, src.Timeout)
			if err != nil {
				return artifactLoad("load classifier", err)
			}
			clf, version = remote, "remote"
			if src.ClassifierVersion != "" {
				version += ":" + src.ClassifierVersion
			}
			return nil
		}
		m, err := classifier.LoadLinear(src.ModelPath)
		if err != nil {
			return artifactLoad("load classifier", err)
		}
		clf, version = m, m.Version
		return nil
	})
	g.Go(func() error {
		var err error
		if decoder, err = classifier.LoadLabelDecoder(src.DecoderPath); err != nil {
			return artifactLoad("load label decoder", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := checkShape(clf, ds.Vocabulary, decoder); err != nil {
		return nil, artifactLoad("artifact mismatch", err)
	}

	var unresolved []string
	for _, name := range decoder.Classes() {
		if _, ok := ds.Metadata.Lookup(name); !ok {
			unresolved = append(unresolved, name)
		}
	}
	if len(unresolved) > 0 {
		logger.WithField("classes", unresolved).Warn("label decoder classes missing from disease metadata")
	}

	if src.Serialize {
		clf = classifier.Serialize(clf)
	}

	logger.WithFields(logrus.Fields{
		"symptoms":      ds.Vocabulary.Len(),
		"diseases":      ds.Metadata.Len(),
		"classes":       decoder.Len(),
		"model_version": version,
	}).Info("artifacts loaded")

	return &Artifacts{
		Vocabulary:   ds.Vocabulary,
		Metadata:     ds.Metadata,
		Classifier:   clf,
		Decoder:      decoder,
		ModelVersion: version,
	}, nil
}

func checkShape(clf classifier.Classifier, vocab *dataset.Vocabulary, decoder *classifier.LabelDecoder) error {
	d, ok := clf.(classifier.Describer)
	if !ok {
		return nil
	}
	if d.NumFeatures() != vocab.Len() {
		return fmt.Errorf("classifier expects %d features, dataset has %d symptoms", d.NumFeatures(), vocab.Len())
	}
	if cols := d.FeatureColumns(); cols != nil {
		for i, c := range cols {
			if c != vocab.At(i) {
				return fmt.Errorf("feature %d is %q in the classifier but %q in the dataset", i, c, vocab.At(i))
			}
		}
	}
	if d.NumClasses() != decoder.Len() {
		return fmt.Errorf("classifier has %d classes, label decoder has %d (%s)",
			d.NumClasses(), decoder.Len(), strings.Join(decoder.Classes(), ", "))
	}
	return nil
}
