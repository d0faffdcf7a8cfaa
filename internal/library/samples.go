package library

import "fmt"

// samplePapers seed an empty library so retrieval can be exercised before
// any real corpus is loaded.
var samplePapers = []struct {
	filename string
	content  string
}{
	{
		filename: "paper_1.txt",
		content: `Title: Deep Learning for Natural Language Processing: A Comprehensive Survey

Abstract: This paper presents a comprehensive survey of deep learning techniques applied to natural language processing (NLP). We review the evolution from traditional statistical methods to modern neural architectures, including recurrent neural networks, transformers, and large language models. Our analysis covers key applications such as machine translation, sentiment analysis, question answering, and text generation. We discuss the challenges and future directions in the field, emphasizing the importance of interpretability, efficiency, and ethical considerations in NLP systems.

Keywords: deep learning, natural language processing, transformers, neural networks, machine learning

Introduction: Natural language processing has undergone a revolutionary transformation with the advent of deep learning techniques. This survey aims to provide researchers and practitioners with a comprehensive overview of the current state of the art in deep learning for NLP.`,
	},
	{
		filename: "paper_2.txt",
		content: `Title: Attention Mechanisms in Computer Vision: From CNNs to Vision Transformers

Abstract: Attention mechanisms have become a cornerstone of modern computer vision architectures. This paper traces the evolution of attention in vision models, from early spatial attention in convolutional neural networks to the revolutionary Vision Transformer (ViT) architecture. We analyze different types of attention mechanisms, including spatial, channel, and self-attention, and their impact on model performance across various vision tasks. Our experimental evaluation demonstrates the effectiveness of attention-based models in image classification, object detection, and semantic segmentation.

Keywords: attention mechanisms, computer vision, transformers, convolutional neural networks, image processing

Introduction: The introduction of attention mechanisms has fundamentally changed how we approach computer vision problems, enabling models to focus on relevant parts of the input and achieve unprecedented performance.`,
	},
	{
		filename: "paper_3.txt",
		content: `Title: Federated Learning: Privacy-Preserving Machine Learning for Distributed Data

Abstract: Federated learning has emerged as a promising paradigm for training machine learning models on distributed data while preserving privacy. This paper provides an in-depth analysis of federated learning algorithms, communication protocols, and privacy guarantees. We examine the challenges of non-IID data distribution, communication efficiency, and system heterogeneity in federated settings. Our work includes a comprehensive evaluation of different aggregation strategies and their impact on model convergence and performance.

Keywords: federated learning, privacy preservation, distributed machine learning, differential privacy, secure aggregation

Introduction: As data privacy concerns grow and regulations like GDPR become more stringent, federated learning offers a compelling solution for collaborative machine learning without centralizing sensitive data.`,
	},
}

// CreateSamples writes the bundled sample papers into the library directory
// and returns their paths. Existing files with the same names are kept; the
// samples land under suffixed names instead.
func (l *Library) CreateSamples() ([]string, error) {
	paths := make([]string, 0, len(samplePapers))
	for _, paper := range samplePapers {
		path, err := l.Add(paper.filename, []byte(paper.content))
		if err != nil {
			return paths, fmt.Errorf("create sample %s: %w", paper.filename, err)
		}
		paths = append(paths, path)
	}
	l.logger.Info("sample papers created", "count", len(paths), "dir", l.dir)
	return paths, nil
}
