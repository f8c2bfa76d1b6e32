package criteria

import "github.com/ahrav/go-ielts/internal/domain"

// descriptorTable holds one criterion's descriptors keyed at whole bands.
type descriptorTable map[float64]domain.BandDescriptor

func descriptor(c domain.AssessmentCriterion, band float64, desc string, features ...string) domain.BandDescriptor {
	return domain.BandDescriptor{
		Band:          band,
		Criterion:     c,
		Description:   desc,
		KeyFeatures:   features,
		TypicalErrors: []string{},
	}
}

var taskResponseDescriptors = descriptorTable{
	9: descriptor(domain.CriterionTaskResponse, 9,
		"Fully addresses all parts of the task with a fully developed position",
		"Fully addresses all parts of the task",
		"Presents a fully developed position in answer to the question",
		"Ideas are relevant, fully extended and well supported",
		"Clear and comprehensive ideas throughout",
	),
	8: descriptor(domain.CriterionTaskResponse, 8,
		"Sufficiently addresses all parts of the task with a well-developed position",
		"Sufficiently addresses all parts of the task",
		"Presents a well-developed response to the question",
		"Ideas are relevant, well extended and supported",
		"Clear and effective ideas with occasional minor lapses",
	),
	7: descriptor(domain.CriterionTaskResponse, 7,
		"Addresses all parts of the task with a clear position",
		"Addresses all parts of the task",
		"Presents a clear position throughout the response",
		"Main ideas are well developed with relevant supporting details",
		"Ideas are generally clear and relevant",
	),
	6: descriptor(domain.CriterionTaskResponse, 6,
		"Addresses all parts of the task although some may be more fully covered",
		"Addresses all parts of the task although some may be more fully covered than others",
		"Presents a relevant position although conclusions may become unclear or repetitive",
		"Main ideas are relevant but may be insufficiently developed/unclear",
		"Some ideas may lack focus or contain inaccuracies",
	),
	5: descriptor(domain.CriterionTaskResponse, 5,
		"Addresses the task only partially with limited development",
		"Addresses the task only partially; format may be inappropriate in places",
		"Position unclear in places",
		"Main ideas are limited and not sufficiently developed",
		"Some irrelevant detail may be present",
	),
	4: descriptor(domain.CriterionTaskResponse, 4,
		"Attempts to address the task but does not cover all requirements",
		"Attempts to address the task but does not cover all requirements",
		"Position is unclear",
		"Few ideas and these are not well developed",
		"Significant irrelevant material or repetition",
	),
}

var coherenceDescriptors = descriptorTable{
	9: descriptor(domain.CriterionCoherenceCohesion, 9,
		"Logical sequencing with full cohesion and appropriate paragraphing",
		"Uses cohesion in such a way that it attracts no attention",
		"Skilful management of paragraphing",
		"Sequences information and ideas logically",
		"Uses a wide range of cohesive devices appropriately",
	),
	8: descriptor(domain.CriterionCoherenceCohesion, 8,
		"Clear logical sequencing with effective cohesion and paragraphing",
		"Sequences information and ideas logically",
		"Manages all aspects of cohesion well",
		"Uses paragraphing sufficiently and appropriately",
		"Uses a wide range of cohesive devices appropriately with only minor lapses",
	),
	7: descriptor(domain.CriterionCoherenceCohesion, 7,
		"Generally clear progression with appropriate use of cohesive devices",
		"Logically organises information and ideas with clear progression throughout",
		"Uses a range of cohesive devices appropriately although there may be some under-/over-use",
		"Presents a clear central topic within each paragraph",
		"Generally appropriate paragraphing",
	),
	6: descriptor(domain.CriterionCoherenceCohesion, 6,
		"Coherent arrangement with some effective use of cohesive devices",
		"Arranges information and ideas coherently with overall progression",
		"Uses cohesive devices effectively but cohesion within/between sentences may be faulty or mechanical",
		"May not always use referencing clearly or appropriately",
		"Uses paragraphing but not always logically",
	),
	5: descriptor(domain.CriterionCoherenceCohesion, 5,
		"Some organisation with limited range of cohesive devices",
		"Presents information with some organisation but may lack overall progression",
		"Makes inadequate, inaccurate or over-use of cohesive devices",
		"May be repetitive because of lack of referencing and substitution",
		"May lack paragraphing or use inappropriate paragraphing",
	),
	4: descriptor(domain.CriterionCoherenceCohesion, 4,
		"Limited organisation with minimal use of cohesive devices",
		"Presents information and ideas but these are not arranged coherently",
		"Uses some basic cohesive devices but these may be inaccurate or repetitive",
		"May not write in paragraphs or their use may be confusing",
		"Lacks clear logical progression",
	),
}

var lexicalDescriptors = descriptorTable{
	9: descriptor(domain.CriterionLexicalResource, 9,
		"Wide range of vocabulary with natural and sophisticated language use",
		"Uses a wide range of vocabulary with very natural and sophisticated control of lexical features",
		"Rare minor errors occur only as 'slips'",
		"Uses idiomatic language naturally and accurately",
		"Demonstrates sophisticated control of lexical features",
	),
	8: descriptor(domain.CriterionLexicalResource, 8,
		"Wide range of vocabulary with good control and awareness of style",
		"Uses a wide range of vocabulary fluently and flexibly to convey precise meanings",
		"Skilfully uses uncommon lexical items but occasional inaccuracies in word choice and collocation",
		"Produces rare errors in spelling and/or word formation",
		"Good awareness of style and collocation",
	),
	7: descriptor(domain.CriterionLexicalResource, 7,
		"Sufficient range with good control and awareness of style",
		"Uses a sufficient range of vocabulary to allow some flexibility and precise usage",
		"Uses less common lexical items with some awareness of style and collocation",
		"May produce occasional errors in word choice, spelling and/or word formation",
		"Generally good control of lexical features",
	),
	6: descriptor(domain.CriterionLexicalResource, 6,
		"Adequate range with some errors that do not impede communication",
		"Uses an adequate range of vocabulary for the task",
		"Attempts to use less common vocabulary but with some inaccuracy",
		"Makes some errors in spelling and/or word formation but they do not impede communication",
		"Some attempts at precise word choice",
	),
	5: descriptor(domain.CriterionLexicalResource, 5,
		"Limited range with noticeable errors in word choice and spelling",
		"Uses a limited range of vocabulary but this is minimally adequate for the task",
		"May make noticeable errors in spelling and/or word formation that may cause some difficulty",
		"Limited control of word formation and/or spelling",
		"Relies on basic vocabulary with some attempts at variety",
	),
	4: descriptor(domain.CriterionLexicalResource, 4,
		"Basic vocabulary with frequent errors",
		"Uses only basic vocabulary which may be used repetitively",
		"May have little control of word formation and/or spelling",
		"Errors may cause strain for the reader",
		"Very limited range with frequent repetition",
	),
}

var grammaticalDescriptors = descriptorTable{
	9: descriptor(domain.CriterionGrammaticalRange, 9,
		"Wide range of structures with full flexibility and accurate usage",
		"Uses a wide range of structures with full flexibility and accurate usage",
		"Rare minor errors occur only as 'slips'",
		"Accurate and appropriate punctuation throughout",
		"Complete grammatical control",
	),
	8: descriptor(domain.CriterionGrammaticalRange, 8,
		"Wide range of structures with good control and few errors",
		"Uses a wide range of structures flexibly",
		"Produces frequent error-free sentences",
		"Good control of grammar and punctuation but may make occasional errors",
		"Most sentences are error-free",
	),
	7: descriptor(domain.CriterionGrammaticalRange, 7,
		"Variety of complex structures with good control and frequent error-free sentences",
		"Uses a variety of complex structures",
		"Produces frequent error-free sentences",
		"Has good control of grammar and punctuation but may make a few errors",
		"Generally accurate with some errors that do not impede communication",
	),
	6: descriptor(domain.CriterionGrammaticalRange, 6,
		"Mix of simple and complex structures with some accuracy",
		"Uses a mix of simple and complex sentence forms",
		"Makes some errors in grammar and punctuation but they rarely reduce communication",
		"Generally maintains control of tense and sentence structure",
		"Some variety in sentence structure",
	),
	5: descriptor(domain.CriterionGrammaticalRange, 5,
		"Limited range with frequent errors",
		"Uses only a limited range of structures",
		"Attempts complex sentences but these tend to be less accurate than simple sentences",
		"May make frequent grammatical errors and punctuation may be faulty",
		"Errors can cause some difficulty for the reader",
	),
	4: descriptor(domain.CriterionGrammaticalRange, 4,
		"Very limited range with frequent errors that may impede communication",
		"Uses only a very limited range of structures",
		"Subordinate clauses are rare",
		"Some structures are accurate but errors predominate",
		"Errors frequently impede meaning",
	),
}
