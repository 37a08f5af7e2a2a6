package utils

// PartitionMap divides the index range [0, MaxIndex) into ParallelDegree
// contiguous buckets.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

// NewPartitionMap splits maxIndex evenly, with a maximum imbalance of one.
func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// NewPartitionMapFromSizes builds the buckets from explicit bucket sizes,
// which is how ownership ranges of distributed vectors are described.
func NewPartitionMapFromSizes(sizes []int) (pm *PartitionMap) {
	pm = &PartitionMap{
		ParallelDegree: len(sizes),
		Partitions:     make([][2]int, len(sizes)),
	}
	var offset int
	for n, sz := range sizes {
		pm.Partitions[n] = [2]int{offset, offset + sz}
		offset += sz
	}
	pm.MaxIndex = offset
	return
}

// GetBucket returns the bucket holding kDim, bucketNum is -1 when kDim is
// out of range.
func (pm *PartitionMap) GetBucket(kDim int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(kDim)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(kDim int) (tryCount, bucketNum, min, max int) {
	if kDim < 0 || kDim >= pm.MaxIndex || pm.ParallelDegree == 0 {
		return 0, -1, 0, 0
	}
	// Initial guess assumes an even split
	bucketNum = int(float64(pm.ParallelDegree*kDim) / float64(pm.MaxIndex))
	if bucketNum >= pm.ParallelDegree {
		bucketNum = pm.ParallelDegree - 1
	}
	for !(pm.Partitions[bucketNum][0] <= kDim && pm.Partitions[bucketNum][1] > kDim) {
		if pm.Partitions[bucketNum][0] > kDim {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return tryCount, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// The remainder is spread over the first buckets, one item each
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 {
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
